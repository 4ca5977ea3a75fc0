package ingest

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// PollSource periodically fetches a JSON aircraft-list endpoint (the
// airplanes.live /point/lat/lon/radius shape) and drains it one
// aircraft at a time, re-fetching once the batch is exhausted. A
// rate.Limiter throttles fetches so a short interval can't hammer a
// public API.
type PollSource struct {
	client  *http.Client
	url     string
	limiter *rate.Limiter

	pending *list.List
}

// NewPollSource builds a PollSource against url, fetching at most once
// every 1/requestsPerSecond.
func NewPollSource(url string, requestsPerSecond float64) *PollSource {
	return &PollSource{
		client:  &http.Client{Timeout: 10 * time.Second},
		url:     url,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		pending: list.New(),
	}
}

// Next implements pkg/engine.Source, fetching a fresh batch when the
// previous one has been fully drained. An empty batch is not an error:
// it means nothing was observed this cycle, so Next re-fetches (subject
// to the rate limiter) rather than signaling stream exhaustion.
func (s *PollSource) Next(ctx context.Context) (map[string]any, float64, error) {
	for s.pending.Len() == 0 {
		if err := s.fetch(ctx); err != nil {
			return nil, 0, err
		}
	}

	front := s.pending.Front()
	s.pending.Remove(front)
	raw := front.Value.(map[string]any)
	return raw, float64(time.Now().Unix()), nil
}

func (s *PollSource) fetch(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ingest: poll rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("ingest: poll request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ingest: poll fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("ingest: poll rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ingest: poll fetch status %d: %s", resp.StatusCode, string(body))
	}

	var batch struct {
		Aircraft []map[string]any `json:"ac"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return fmt.Errorf("ingest: poll decode: %w", err)
	}
	for _, ac := range batch.Aircraft {
		s.pending.PushBack(ac)
	}
	return nil
}
