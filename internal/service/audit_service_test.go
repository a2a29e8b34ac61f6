package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/models"
	"github.com/noah-isme/cohort-api/pkg/config"
)

type auditWriterFake struct {
	mu      sync.Mutex
	entries []models.AuditLog
	err     error
}

func (f *auditWriterFake) Create(_ context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *log)
	return nil
}

func (f *auditWriterFake) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func TestAuditRecordInlineWithoutWorkers(t *testing.T) {
	writer := &auditWriterFake{}
	svc := NewAuditService(writer, config.AuditConfig{}, nil)

	svc.Record(context.Background(), auditEntry(admin(), models.AuditProgramCreate, "program", "p-1", nil))
	require.Equal(t, 1, writer.count())
	assert.Equal(t, models.AuditProgramCreate, writer.entries[0].Action)
	assert.False(t, writer.entries[0].CreatedAt.IsZero())
}

func TestAuditRecordInlineBeforeStart(t *testing.T) {
	writer := &auditWriterFake{}
	svc := NewAuditService(writer, config.AuditConfig{Workers: 2}, nil)

	svc.Record(context.Background(), models.AuditLog{ID: "a-1", Action: models.AuditUserDelete})
	assert.Equal(t, 1, writer.count())
}

func TestAuditQueueFlushesOnStop(t *testing.T) {
	writer := &auditWriterFake{}
	svc := NewAuditService(writer, config.AuditConfig{Workers: 2, BufferSize: 64}, nil)
	svc.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 20; i++ {
		svc.Record(ctx, models.AuditLog{Action: models.AuditEnrollmentCreate})
	}
	cancel()
	svc.Stop()

	assert.Equal(t, 20, writer.count())
}

func TestAuditFailuresAreSwallowed(t *testing.T) {
	writer := &auditWriterFake{err: errors.New("db down")}
	svc := NewAuditService(writer, config.AuditConfig{}, nil)
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), models.AuditLog{Action: models.AuditUserApprove})
	})

	var nilSvc *AuditService
	assert.NotPanics(t, func() { nilSvc.Record(context.Background(), models.AuditLog{}) })
}
