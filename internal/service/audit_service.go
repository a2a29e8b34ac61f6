package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/pkg/config"
	"github.com/noah-isme/cohort-api/pkg/jobs"
)

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditService persists audit rows off the request path. Without a running
// queue entries are written inline.
type AuditService struct {
	repo   auditWriter
	queue  *jobs.Queue[models.AuditLog]
	logger *zap.Logger
}

// NewAuditService builds the service and its worker queue. Workers <= 0 keeps writes synchronous.
func NewAuditService(repo auditWriter, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	if cfg.Workers > 0 {
		s.queue = jobs.New("audit", s.handle, jobs.Config{
			Workers:    cfg.Workers,
			BufferSize: cfg.BufferSize,
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		})
	}
	return s
}

// Start launches the audit workers.
func (s *AuditService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop flushes buffered entries.
func (s *AuditService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Record stores entry, asynchronously when possible. Failures are logged, never returned.
func (s *AuditService) Record(ctx context.Context, entry models.AuditLog) {
	if s == nil || s.repo == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if s.queue != nil {
		err := s.queue.TryEnqueue(jobs.Job[models.AuditLog]{ID: entry.ID, Payload: entry})
		if err == nil {
			return
		}
		if !errors.Is(err, jobs.ErrNotRunning) {
			s.logger.Warn("audit queue saturated, writing inline", zap.String("action", entry.Action), zap.Error(err))
		}
	}
	if err := s.repo.Create(context.WithoutCancel(ctx), &entry); err != nil {
		s.logger.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	return s.repo.Create(ctx, &entry)
}
