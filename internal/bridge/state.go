package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Unavailability reason codes carried by 503 responses and /health.
const (
	ReasonMissingAPI       = "missing_language_model_api"
	ReasonModelUnavailable = "copilot_model_unavailable"
	ReasonNotFound         = "not_found"
	ReasonRateLimited      = "rate_limited"
	ReasonConsentRequired  = "consent_required"
)

// UnavailableError reports that no backing model could be resolved, with a
// machine-readable reason code.
type UnavailableError struct {
	Reason  string
	Message string
}

func (e *UnavailableError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return e.Reason
}

// Handle is a resolved backing model that can stream one completion.
type Handle interface {
	ID() string
	Invoke(ctx context.Context, messages []BackingMessage, tools []Tool) (Stream, error)
}

// Resolver obtains model handles from the backing provider. Resolve with an
// empty id returns the default model; Invalidate drops any cached handle so
// the next request re-resolves.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Handle, error)
	ListModels(ctx context.Context) ([]string, error)
	Invalidate()
}

// State is the process-wide bridge state: the admission counter, the cached
// model handle and the last unavailability reason. One instance is created
// at startup and passed into the server, resolver and handlers.
type State struct {
	active atomic.Int64

	mu         sync.Mutex
	model      Handle
	lastReason string
}

// NewState returns an idle State.
func NewState() *State {
	return &State{}
}

// TryAcquire admits one request if fewer than max are in flight. A
// rejected attempt leaves the counter untouched.
func (s *State) TryAcquire(max int64) bool {
	for {
		n := s.active.Load()
		if n >= max {
			return false
		}

		if s.active.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns one admission slot. The counter never goes negative.
func (s *State) Release() {
	if s.active.Add(-1) < 0 {
		s.active.Store(0)
	}
}

// ActiveRequests reports the number of requests currently in flight.
func (s *State) ActiveRequests() int64 {
	return s.active.Load()
}

// CachedModel returns the cached default model handle, if any.
func (s *State) CachedModel() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.model
}

// StoreModel caches the default model handle and clears the failure reason.
func (s *State) StoreModel(h Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = h
	s.lastReason = ""
}

// InvalidateModel drops the cached handle so the next resolution starts
// fresh. Re-resolution is idempotent, so last-writer-wins is fine here.
func (s *State) InvalidateModel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = nil
}

// SetLastReason records why the most recent resolution failed.
func (s *State) SetLastReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastReason = reason
}

// LastReason returns the most recent resolution failure reason, if any.
func (s *State) LastReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastReason
}

// ResponseContext is the immutable per-request formatting context.
type ResponseContext struct {
	RequestID string
	ModelName string
	CreatedAt int64
	Streaming bool
}

// NewResponseContext stamps a formatting context for one request.
func NewResponseContext(requestID, modelName string, streaming bool) ResponseContext {
	return ResponseContext{
		RequestID: requestID,
		ModelName: modelName,
		CreatedAt: time.Now().Unix(),
		Streaming: streaming,
	}
}
