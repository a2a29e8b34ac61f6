package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/models"
)

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

type auditRecorderStub struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditRecorderStub) Record(_ context.Context, entry models.AuditLog) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditRecorderStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type publishedEvent struct {
	Type  string
	Actor string
}

type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *publisherStub) Publish(_ context.Context, eventType, actorID string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Type: eventType, Actor: actorID})
	return p.err
}

func (p *publisherStub) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// mentorSet answers IsMentor from "program/mentor" pairs, standing in for the
// union of legacy and many-to-many assignments.
type mentorSet map[string]bool

func (m mentorSet) IsMentor(_ context.Context, programID, mentorID string) (bool, error) {
	return m[programID+"/"+mentorID], nil
}

func (m mentorSet) ProgramIDsForMentor(_ context.Context, mentorID string) ([]string, error) {
	ids := []string{}
	for pair, ok := range m {
		programID, assigned, found := strings.Cut(pair, "/")
		if ok && found && assigned == mentorID {
			ids = append(ids, programID)
		}
	}
	return ids, nil
}

func claimsFor(id string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: role}
}

func admin() *models.JWTClaims   { return claimsFor("admin-1", models.RoleAdmin) }
func mentor() *models.JWTClaims  { return claimsFor("mentor-1", models.RoleMentor) }
func student() *models.JWTClaims { return claimsFor("student-1", models.RoleStudent) }

func studentNamed(id string) *models.JWTClaims { return claimsFor(id, models.RoleStudent) }

func intPtr(v int) *int { return &v }
