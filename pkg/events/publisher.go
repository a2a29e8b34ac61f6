// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/pkg/config"
)

// Event names emitted by the workflow.
const (
	ApplicationSubmitted = "application.submitted"
	ApplicationReviewed  = "application.reviewed"
	ApplicationWithdrawn = "application.withdrawn"
	EnrollmentCreated    = "enrollment.created"
	EnrollmentUpdated    = "enrollment.updated"
	SubmissionGraded     = "submission.graded"
)

// Envelope is the wire form of every event.
type Envelope struct {
	Type       string      `json:"type"`
	ActorID    string      `json:"actor_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher emits domain events. Implementations must not block callers for long.
type Publisher interface {
	Publish(ctx context.Context, eventType, actorID string, data interface{}) error
}

type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher sends events to "<prefix>.<event type>".
type NATSPublisher struct {
	conn   conn
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewNATSPublisher wraps an established connection.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *NATSPublisher {
	return newNATSPublisher(nc, prefix, logger)
}

func newNATSPublisher(c conn, prefix string, logger *zap.Logger) *NATSPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSPublisher{
		conn:   c,
		prefix: strings.Trim(prefix, "."),
		logger: logger,
		now:    time.Now,
	}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

// Publish marshals and sends the event.
func (p *NATSPublisher) Publish(ctx context.Context, eventType, actorID string, data interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(Envelope{
		Type:       eventType,
		ActorID:    actorID,
		OccurredAt: p.now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}
	subject := p.Subject(eventType)
	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Nop discards events. Used when NATS is not configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, string, interface{}) error { return nil }

// Connect dials NATS when a URL is configured and returns the matching
// publisher together with a close function.
func Connect(cfg config.EventsConfig, logger *zap.Logger) (Publisher, func(), error) {
	if cfg.NATSURL == "" {
		return Nop{}, func() {}, nil
	}
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("cohort-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(nc, cfg.SubjectPrefix, logger), func() {
		if err := nc.Drain(); err != nil && logger != nil {
			logger.Warn("drain nats connection", zap.Error(err))
		}
	}, nil
}
