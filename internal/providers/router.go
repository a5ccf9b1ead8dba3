package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ResponseOutcome records one attempt against one provider, successful or
// not, for cost/latency attribution.
type ResponseOutcome struct {
	Provider  string
	Model     string
	LatencyMS int64
	Usage     *Usage
	SenderID  string
	Status    string // "ok", "error", "cancelled"
	Err       error
}

// OutcomeRecorder receives a ResponseOutcome for every attempt a
// TieredRouter makes, across every provider in the tier list.
type OutcomeRecorder interface {
	Record(ResponseOutcome)
}

// OutcomeRecorderFunc adapts a function to OutcomeRecorder.
type OutcomeRecorderFunc func(ResponseOutcome)

func (f OutcomeRecorderFunc) Record(o ResponseOutcome) { f(o) }

// TieredRouter holds an ordered list of providers and fails over to the
// next on any error other than cancellation, after RetryPolicy (when the
// provider is wrapped in one) has already exhausted retries against the
// current one.
type TieredRouter struct {
	providers []Provider
	recorder  OutcomeRecorder
	senderID  string
}

// NewTieredRouter builds a router over providers in priority order.
func NewTieredRouter(providers []Provider, recorder OutcomeRecorder) *TieredRouter {
	return &TieredRouter{providers: providers, recorder: recorder}
}

// WithSenderID returns a copy of r that attributes outcomes to senderID.
func (r *TieredRouter) WithSenderID(senderID string) *TieredRouter {
	cp := *r
	cp.senderID = senderID
	return &cp
}

func (r *TieredRouter) Name() string { return "tiered" }

func (r *TieredRouter) DefaultModel() string {
	if len(r.providers) == 0 {
		return ""
	}
	return r.providers[0].DefaultModel()
}

// Chat tries each provider in order, returning the first success.
func (r *TieredRouter) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for _, p := range r.providers {
		start := time.Now()
		resp, err := p.Chat(ctx, req)
		latency := time.Since(start).Milliseconds()
		if err == nil {
			r.record(p, req, latency, resp.Usage, "ok", nil)
			return resp, nil
		}
		r.record(p, req, latency, nil, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("providers: no providers configured")
	}
	return nil, lastErr
}

// ChatStream tries each provider in order. Partial output from a failed
// provider is buffered internally and discarded on failover — the caller's
// onChunk only ever observes output from the provider that ultimately
// succeeds, satisfying the streaming-failover-cleanliness property.
func (r *TieredRouter) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk) bool) (*ChatResponse, error) {
	var lastErr error
	for _, p := range r.providers {
		start := time.Now()
		var buffered strings.Builder
		aborted := false
		resp, err := p.ChatStream(ctx, req, func(c StreamChunk) bool {
			buffered.WriteString(c.Content)
			if !onChunk(StreamChunk{Content: "", Thinking: c.Thinking, Done: c.Done}) {
				aborted = true
				return false
			}
			return true
		})
		latency := time.Since(start).Milliseconds()
		if err == nil && !aborted {
			// Flush the buffered text as one final chunk, now that we know
			// this provider is the one whose output wins.
			onChunk(StreamChunk{Content: buffered.String(), Done: true})
			r.record(p, req, latency, resp.Usage, "ok", nil)
			return resp, nil
		}
		if aborted {
			r.record(p, req, latency, nil, "cancelled", nil)
			return nil, context.Canceled
		}
		r.record(p, req, latency, nil, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("providers: no providers configured")
	}
	return nil, lastErr
}

func (r *TieredRouter) record(p Provider, req ChatRequest, latencyMS int64, usage *Usage, status string, err error) {
	if r.recorder == nil {
		return
	}
	r.recorder.Record(ResponseOutcome{
		Provider:  p.Name(),
		Model:     req.Model,
		LatencyMS: latencyMS,
		Usage:     usage,
		SenderID:  r.senderID,
		Status:    status,
		Err:       err,
	})
}

// InMemoryOutcomeRecorder is a simple thread-safe OutcomeRecorder suitable
// for tests and cost dashboards.
type InMemoryOutcomeRecorder struct {
	mu       sync.Mutex
	outcomes []ResponseOutcome
}

func (r *InMemoryOutcomeRecorder) Record(o ResponseOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *InMemoryOutcomeRecorder) Outcomes() []ResponseOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResponseOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}
