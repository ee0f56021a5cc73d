// Package notifications is the boundary the meetings core uses to announce
// membership events. Delivery is fire-and-forget: failures are logged by the
// caller and never surfaced to the user.
package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/queue"
)

// Message is one push notification. Recipients are given as user ids, device
// tokens, or both; user ids are resolved to tokens at delivery time.
type Message struct {
	UserIDs []uuid.UUID
	Tokens  []string
	Title   string
	Body    string
	Meta    map[string]string
}

// Gateway is the abstract notification sink.
type Gateway interface {
	Notify(ctx context.Context, msg Message) error
}

// QueueGateway enqueues push jobs for the background worker.
type QueueGateway struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewQueueGateway creates a queue-backed gateway.
func NewQueueGateway(q *queue.Queue, logger *zap.Logger) *QueueGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueGateway{queue: q, logger: logger}
}

// Notify enqueues the message for asynchronous delivery.
func (g *QueueGateway) Notify(ctx context.Context, msg Message) error {
	if len(msg.UserIDs) == 0 && len(msg.Tokens) == 0 {
		return nil
	}
	return g.queue.EnqueuePush(ctx, queue.PushPayload{
		UserIDs: msg.UserIDs,
		Tokens:  msg.Tokens,
		Title:   msg.Title,
		Body:    msg.Body,
		Meta:    msg.Meta,
	})
}

// Nop discards all messages. Used in tests and when no queue is configured.
type Nop struct{}

// Notify implements Gateway.
func (Nop) Notify(context.Context, Message) error { return nil }
