// Package events publishes governance events (rate-limit rejections and
// unclassified errors) for offline analysis. Publishing is best-effort:
// it never blocks or fails the request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"diyetlenio/internal/platform/kafka/producer"
	"diyetlenio/internal/platform/privacy"
	"diyetlenio/pkg/requestcontext"
)

// Event types.
const (
	TypeRateLimitExceeded = "rate_limit.exceeded"
	TypeUnclassifiedError = "error.unclassified"
)

// Event is one governance occurrence.
type Event struct {
	ID           string            `json:"id"`
	Type         string            `json:"type"`
	OccurredAt   time.Time         `json:"occurred_at"`
	RequestID    string            `json:"request_id,omitempty"`
	ClientPrefix string            `json:"client_prefix,omitempty"`
	Principal    string            `json:"principal,omitempty"`
	APIVersion   string            `json:"api_version,omitempty"`
	Path         string            `json:"path,omitempty"`
	Method       string            `json:"method,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

func newEvent(ctx context.Context, typ, path string) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         typ,
		OccurredAt:   requestcontext.Now(ctx).UTC(),
		RequestID:    requestcontext.RequestID(ctx),
		ClientPrefix: privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		Principal:    requestcontext.Principal(ctx),
		APIVersion:   requestcontext.APIVersion(ctx),
		Path:         path,
	}
}

// RateLimitExceeded describes a rejected request.
func RateLimitExceeded(ctx context.Context, path, rate string, retryAfter int) Event {
	e := newEvent(ctx, TypeRateLimitExceeded, path)
	e.Attributes = map[string]string{
		"rate":        rate,
		"retry_after": strconv.Itoa(retryAfter),
	}
	return e
}

// UnclassifiedError describes a failure that reached the boundary without a domain kind.
func UnclassifiedError(ctx context.Context, method, path, errType string) Event {
	e := newEvent(ctx, TypeUnclassifiedError, path)
	e.Method = method
	e.Attributes = map[string]string{"error_type": errType}
	return e
}

// Publisher accepts events for asynchronous delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// AsyncProducer is the subset of the Kafka producer used here.
type AsyncProducer interface {
	ProduceAsync(msg *producer.Message) error
}

// KafkaPublisher encodes events as JSON and hands them to the producer.
type KafkaPublisher struct {
	producer AsyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher creates a publisher writing to topic.
func NewKafkaPublisher(p AsyncProducer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

// Publish enqueues e. Encoding and enqueue failures are logged and dropped.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		p.logger.WarnContext(ctx, "governance event encode failed", "error", err, "type", e.Type)
		return
	}
	msg := &producer.Message{
		Topic: p.topic,
		Key:   []byte(e.Type),
		Value: payload,
		Headers: map[string]string{
			"event_type": e.Type,
			"request_id": e.RequestID,
		},
	}
	if err := p.producer.ProduceAsync(msg); err != nil {
		p.logger.WarnContext(ctx, "governance event dropped", "error", err, "type", e.Type)
	}
}

// NoopPublisher discards events. Used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) {}
