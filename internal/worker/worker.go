// Package worker runs the background jobs: push-notification delivery and the
// periodic meeting expiry sweep.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/queue"
)

// TokenResolver resolves user ids to device tokens at delivery time.
type TokenResolver interface {
	GetPushTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
}

// PushProcessor processes push jobs: resolve recipients to device tokens and
// deliver via the configured provider endpoint.
type PushProcessor struct {
	queue     *queue.Queue
	tokens    TokenResolver
	endpoint  string
	serverKey string
	client    *http.Client
	logger    *zap.Logger
}

// NewPushProcessor creates a push delivery processor. An empty endpoint
// disables delivery: jobs are consumed and dropped with a log line.
func NewPushProcessor(q *queue.Queue, tokens TokenResolver, endpoint, serverKey string, logger *zap.Logger) *PushProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushProcessor{
		queue:     q,
		tokens:    tokens,
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// Process executes one push job.
func (p *PushProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePush {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.PushPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Malformed payloads never succeed on retry.
		p.logger.Warn("dropping malformed push job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	tokens := append([]string(nil), payload.Tokens...)
	if len(payload.UserIDs) > 0 {
		resolved, err := p.tokens.GetPushTokens(ctx, payload.UserIDs)
		if err != nil {
			return fmt.Errorf("resolve tokens: %w", err)
		}
		tokens = append(tokens, resolved...)
	}
	if len(tokens) == 0 {
		p.logger.Debug("push job has no recipients", zap.String("job_id", job.ID))
		return nil
	}
	if p.endpoint == "" {
		p.logger.Info("push delivery disabled, dropping job",
			zap.String("job_id", job.ID), zap.Int("recipients", len(tokens)))
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"registration_ids": tokens,
		"notification":     map[string]string{"title": payload.Title, "body": payload.Body},
		"data":             payload.Meta,
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.serverKey != "" {
		req.Header.Set("Authorization", "key="+p.serverKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push delivery: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("push provider status: %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Client errors never succeed on retry.
		p.logger.Warn("push provider rejected job",
			zap.String("job_id", job.ID), zap.Int("status", resp.StatusCode))
		return nil
	}

	p.logger.Info("push delivered",
		zap.String("job_id", job.ID), zap.Int("recipients", len(tokens)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *PushProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("push worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
