// Package webhook delivers `webhook: [kind, target]` actions (spec
// §4.6) to outbound HTTP transports (Slack incoming webhooks, pager
// integrations, generic JSON endpoints) from a bounded background
// worker pool, so a slow or unreachable endpoint never blocks the
// driver loop (spec §5).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/flightops/ruled/pkg/engine"
)

// DefaultQueueSize matches spec §5's default bounded queue of 1024.
const DefaultQueueSize = 1024

// Transport delivers one message to a named external kind ("slack",
// "pager", "generic"). Registered transports are read-only after
// startup (spec §5).
type Transport interface {
	Deliver(ctx context.Context, target string, flightPayload any) error
}

// Pool is a bounded-queue worker pool implementing engine.WebhookSender.
// Overflow is dropped and logged, never blocked on (spec §5, §4.6:
// "non-blocking best-effort; failures are logged, not retried at this
// layer").
type Pool struct {
	queue      chan engine.WebhookMessage
	transports map[string]Transport
	logger     *log.Logger
	done       chan struct{}
}

// NewPool starts numWorkers goroutines draining a queue of size
// queueSize against the given named transports.
func NewPool(transports map[string]Transport, numWorkers, queueSize int, logger *log.Logger) *Pool {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if numWorkers <= 0 {
		numWorkers = 2
	}
	p := &Pool{
		queue:      make(chan engine.WebhookMessage, queueSize),
		transports: transports,
		logger:     logger,
		done:       make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p
}

// Enqueue implements engine.WebhookSender. It never blocks: a full
// queue is a drop, counted by the caller.
func (p *Pool) Enqueue(msg engine.WebhookMessage) bool {
	select {
	case p.queue <- msg:
		return true
	default:
		return false
	}
}

// Close stops accepting new work and waits for the queue to drain.
func (p *Pool) Close() {
	close(p.queue)
	<-p.done
}

func (p *Pool) worker() {
	for msg := range p.queue {
		p.deliver(msg)
	}
	select {
	case p.done <- struct{}{}:
	default:
	}
}

func (p *Pool) deliver(msg engine.WebhookMessage) {
	transport, ok := p.transports[msg.Kind]
	if !ok {
		p.logf("webhook: no transport registered for kind %q (rule %q)", msg.Kind, msg.RuleName)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload := map[string]any{
		"rule":        msg.RuleName,
		"flight_id":   msg.Flight.Identifier,
		"lat":         msg.Flight.Report.Lat,
		"lon":         msg.Flight.Report.Lon,
		"alt_baro":    msg.Flight.Report.AltBaro,
		"last_seen_at": msg.Flight.LastSeenAt,
	}

	if err := transport.Deliver(ctx, msg.Target, payload); err != nil {
		p.logf("webhook: delivery to %q/%q failed: %v", msg.Kind, msg.Target, err)
	}
}

func (p *Pool) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}

// HTTPTransport POSTs the payload as JSON to target, used for generic
// JSON endpoints and Slack-style incoming webhooks alike.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport builds an HTTPTransport with a sane request timeout.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{Timeout: 10 * time.Second}}
}

// Deliver implements Transport.
func (t *HTTPTransport) Deliver(ctx context.Context, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: post %s returned status %d", target, resp.StatusCode)
	}
	return nil
}
