package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"qrstudio/internal/config"
	"qrstudio/internal/types"
)

// SubscriptionSource resolves which endpoints should receive an event.
type SubscriptionSource interface {
	ListActiveByUserAndEvent(ctx context.Context, userID string, event types.EventType) ([]*types.WebhookSubscription, error)
}

// Dispatcher fans events out to subscribed endpoints from a bounded
// in-memory queue. When the queue is full, Enqueue drops the event and logs
// a warning; producers are never blocked by slow consumers.
type Dispatcher struct {
	cfg     config.WebhookConfig
	subs    SubscriptionSource
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	queue   chan types.WebhookEvent
	logger  *slog.Logger

	// Injectable for tests.
	sleepFn func(time.Duration)
	nowFn   func() time.Time
}

// NewDispatcher creates a Dispatcher. Call Start to launch the workers.
func NewDispatcher(cfg config.WebhookConfig, subs SubscriptionSource, logger *slog.Logger) (*Dispatcher, error) {
	if subs == nil {
		return nil, fmt.Errorf("webhook dispatcher: subscription source is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "webhook-delivery",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &Dispatcher{
		cfg:     cfg,
		subs:    subs,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: cb,
		queue:   make(chan types.WebhookEvent, cfg.QueueSize),
		logger:  logger,
		sleepFn: time.Sleep,
		nowFn:   time.Now,
	}, nil
}

// Start launches the worker pool. It blocks until ctx is cancelled and the
// in-flight deliveries finish; run it in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-d.queue:
					if !ok {
						return nil
					}
					d.deliver(ctx, event)
				}
			}
		})
	}
	return g.Wait()
}

// Enqueue hands an event to the dispatcher without blocking. Returns false
// when the queue is full and the event was dropped.
func (d *Dispatcher) Enqueue(event types.WebhookEvent) bool {
	select {
	case d.queue <- event:
		return true
	default:
		d.logger.Warn("webhook queue full, event dropped",
			"event_id", event.ID,
			"event_type", event.Type,
			"user_id", event.UserID,
		)
		return false
	}
}

// deliver resolves subscriptions for the event and posts to each. Failures
// are logged, never surfaced to the producer.
func (d *Dispatcher) deliver(ctx context.Context, event types.WebhookEvent) {
	subs, err := d.subs.ListActiveByUserAndEvent(ctx, event.UserID, event.Type)
	if err != nil {
		d.logger.Error("failed to resolve webhook subscriptions",
			"event_id", event.ID,
			"user_id", event.UserID,
			"error", err,
		)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to encode webhook event", "event_id", event.ID, "error", err)
		return
	}

	for _, sub := range subs {
		if err := d.post(ctx, sub, payload); err != nil {
			d.logger.Warn("webhook delivery failed",
				"event_id", event.ID,
				"subscription_id", sub.ID,
				"url", sub.URL,
				"error", err,
			)
			continue
		}
		d.logger.Debug("webhook delivered",
			"event_id", event.ID,
			"subscription_id", sub.ID,
		)
	}
}

// post sends the signed payload to one endpoint, retrying transient
// failures with exponential backoff capped at RetryMaxWait.
func (d *Dispatcher) post(ctx context.Context, sub *types.WebhookSubscription, payload []byte) error {
	var lastErr error
	wait := d.cfg.RetryMinWait

	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			d.sleepFn(wait)
			wait *= 2
			if wait > d.cfg.RetryMaxWait {
				wait = d.cfg.RetryMaxWait
			}
		}

		lastErr = d.attempt(ctx, sub, payload)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (d *Dispatcher) attempt(ctx context.Context, sub *types.WebhookSubscription, payload []byte) error {
	_, err := d.breaker.Execute(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", d.cfg.UserAgent)
		req.Header.Set(SignatureHeader, SignPayload(payload, sub.Secret, d.nowFn()))

		httpResp, httpErr := d.client.Do(req)
		if httpErr != nil {
			return nil, httpErr
		}
		// Drain and close so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		_ = httpResp.Body.Close()

		if httpResp.StatusCode >= 300 {
			return nil, &statusError{code: httpResp.StatusCode}
		}
		return httpResp, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return types.NewAppError(types.ErrCodeUpstreamWebhook, "webhook endpoint unavailable", err)
		}
		return err
	}
	return nil
}

// statusError marks a non-2xx response from the endpoint.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("endpoint returned status %d", e.code)
}

// isRetryable reports whether a delivery error is worth another attempt.
// 4xx responses other than 429 indicate a misconfigured endpoint and are
// not retried. An open breaker fails fast without burning retries.
func isRetryable(err error) bool {
	if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeUpstreamWebhook {
		return false
	}
	if se, ok := err.(*statusError); ok {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}
