package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diyetlenio/internal/platform/kafka/producer"
	"diyetlenio/pkg/requestcontext"
)

type captureProducer struct {
	msgs []*producer.Message
	err  error
}

func (c *captureProducer) ProduceAsync(msg *producer.Message) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func requestCtx() context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithClientMetadata(ctx, "1.2.3.4", "test")
	ctx = requestcontext.WithTime(ctx, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
	return ctx
}

func TestRateLimitExceeded(t *testing.T) {
	e := RateLimitExceeded(requestCtx(), "/api/v1/auth/login/", "5/minute", 42)

	assert.Equal(t, TypeRateLimitExceeded, e.Type)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "req-1", e.RequestID)
	assert.Equal(t, "1.2.3.0", e.ClientPrefix, "client IP is anonymized")
	assert.Equal(t, requestcontext.Anonymous, e.Principal)
	assert.Equal(t, "42", e.Attributes["retry_after"])
	assert.Equal(t, "5/minute", e.Attributes["rate"])
}

func TestKafkaPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("encodes event as json", func(t *testing.T) {
		p := &captureProducer{}
		pub := NewKafkaPublisher(p, "governance", logger)
		pub.Publish(context.Background(), UnclassifiedError(requestCtx(), "GET", "/x", "*errors.errorString"))

		require.Len(t, p.msgs, 1)
		msg := p.msgs[0]
		assert.Equal(t, "governance", msg.Topic)
		assert.Equal(t, TypeUnclassifiedError, string(msg.Key))
		assert.Equal(t, "req-1", msg.Headers["request_id"])

		var decoded Event
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, "GET", decoded.Method)
		assert.Equal(t, "*errors.errorString", decoded.Attributes["error_type"])
	})

	t.Run("producer failure is swallowed", func(t *testing.T) {
		p := &captureProducer{err: errors.New("producer is closed")}
		pub := NewKafkaPublisher(p, "governance", logger)
		assert.NotPanics(t, func() {
			pub.Publish(context.Background(), RateLimitExceeded(requestCtx(), "/x", "1/second", 1))
		})
	})
}
