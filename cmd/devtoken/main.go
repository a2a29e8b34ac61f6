package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/internal/service"
	"github.com/noah-isme/cohort-api/pkg/config"
)

// devtoken prints a signed action credential for local testing.
func main() {
	var (
		subject string
		role    string
		email   string
		ttl     time.Duration
	)
	flag.StringVar(&subject, "sub", "", "user id (profile id) to sign for")
	flag.StringVar(&role, "role", string(models.RoleStudent), "role claim: student, mentor or admin")
	flag.StringVar(&email, "email", "", "optional email claim")
	flag.DurationVar(&ttl, "ttl", 0, "token lifetime; defaults to JWT_EXPIRATION")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("devtoken refuses to run with ENV=production")
	}
	if ttl <= 0 {
		ttl = cfg.JWT.Expiration
	}

	auth := service.NewAuthService(service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Audience: cfg.JWT.Audience,
		Expiry:   ttl,
	}, nil)
	token, expiresAt, err := auth.IssueToken(subject, models.UserRole(role), email)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}
	fmt.Println(token)
	log.Printf("expires at %s", expiresAt.Format(time.RFC3339))
}
