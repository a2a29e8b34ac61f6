package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/repository"
	"github.com/noah-isme/cohort-api/internal/service"
	"github.com/noah-isme/cohort-api/pkg/config"
	"github.com/noah-isme/cohort-api/pkg/database"
	"github.com/noah-isme/cohort-api/pkg/logger"
)

func main() {
	var backfill bool
	flag.BoolVar(&backfill, "backfill", false, "copy legacy programs.mentor_id values into program_mentors after migrating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, logr)
	if err != nil {
		logr.Fatal("migration failed", zap.Error(err))
	}
	logr.Info("migrations complete", zap.Int("applied", len(applied)), zap.Strings("versions", applied))

	if !backfill {
		return
	}
	programs := service.NewProgramService(repository.NewProgramRepository(db), repository.NewEnrollmentRepository(db), db, service.ProgramServiceConfig{}, nil, logr)
	created, err := programs.Backfill(ctx)
	if err != nil {
		logr.Fatal("mentor backfill failed", zap.Error(err))
	}
	logr.Info("mentor backfill complete", zap.Int64("assignments_created", created))
}
