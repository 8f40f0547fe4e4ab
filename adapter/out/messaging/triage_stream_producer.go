package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"triage_server/core/port/out"
)

// Stream names
const (
	StreamOutbound = "wa:outbound"
)

// streamMaxLen caps the outbound stream (approximate trim).
const streamMaxLen = 10000

// OutboundJob is one queued WhatsApp message.
type OutboundJob struct {
	To         string `json:"to"`
	Body       string `json:"body"`
	EnqueuedAt int64  `json:"enqueued_at"`
}

var _ out.ReplyMessenger = (*StreamMessenger)(nil)

// StreamMessenger implements out.ReplyMessenger by publishing to a Redis stream. The
// worker process drains the stream and performs the actual send.
type StreamMessenger struct {
	client *redis.Client
	stream string
}

// NewStreamMessenger creates a producer on StreamOutbound.
func NewStreamMessenger(client *redis.Client) *StreamMessenger {
	return &StreamMessenger{client: client, stream: StreamOutbound}
}

// Send enqueues the message.
func (p *StreamMessenger) Send(ctx context.Context, to, body string) error {
	return p.publish(ctx, &OutboundJob{To: to, Body: body, EnqueuedAt: time.Now().UnixMilli()})
}

// publish publishes a job to the stream.
func (p *StreamMessenger) publish(ctx context.Context, job *OutboundJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.stream, err)
	}

	return nil
}

// =============================================================================
// Outbound Handler
// =============================================================================

// OutboundHandler is the JobHandler that delivers queued messages.
type OutboundHandler struct {
	sender out.ReplyMessenger
}

// NewOutboundHandler wraps the real sender.
func NewOutboundHandler(sender out.ReplyMessenger) *OutboundHandler {
	return &OutboundHandler{sender: sender}
}

// Handle decodes one job and sends it.
func (h *OutboundHandler) Handle(ctx context.Context, stream string, data []byte) error {
	var job OutboundJob
	if err := json.Unmarshal(data, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	if job.To == "" {
		return fmt.Errorf("%w: missing recipient", ErrPoisonMessage)
	}
	return h.sender.Send(ctx, job.To, job.Body)
}
