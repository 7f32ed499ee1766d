// Package ratelimit tracks per-model throttling state so the generation
// path can skip models a provider has told us to back off from.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// DefaultBackoff is applied when a provider signals throttling without an
// advisory retry-after.
const DefaultBackoff = 60 * time.Second

// LimitedModel describes a model currently unavailable and for how long.
type LimitedModel struct {
	Model            string
	SecondsRemaining int
}

// Tracker records which models are rate-limited and until when. Entries
// expire lazily: a read past the recorded deadline reports the model as
// available without any background sweeping. State is process-lifetime only;
// the limits themselves are externally time-boxed, so nothing is persisted.
//
// A Tracker is safe for concurrent use.
type Tracker struct {
	mu             sync.Mutex
	limitedUntil   map[string]time.Time
	defaultBackoff time.Duration
	now            func() time.Time
}

// New creates a tracker with the default backoff.
func New() *Tracker {
	return NewWithBackoff(DefaultBackoff)
}

// NewWithBackoff creates a tracker with a custom default backoff.
func NewWithBackoff(backoff time.Duration) *Tracker {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Tracker{
		limitedUntil:   make(map[string]time.Time),
		defaultBackoff: backoff,
		now:            time.Now,
	}
}

// FilterAvailable splits candidate models into those available now and those
// still inside a backoff window. Expired entries are evicted as they are
// observed. The relative order of candidates is preserved.
func (t *Tracker) FilterAvailable(candidates []string) (available []string, limited []LimitedModel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, model := range candidates {
		until, ok := t.limitedUntil[model]
		if !ok || !until.After(now) {
			if ok {
				delete(t.limitedUntil, model)
			}
			available = append(available, model)
			continue
		}
		limited = append(limited, LimitedModel{
			Model:            model,
			SecondsRemaining: int(math.Ceil(until.Sub(now).Seconds())),
		})
	}
	return available, limited
}

// RecordRateLimited marks a model as unavailable until now+retryAfter, or
// now+defaultBackoff when the provider gave no advisory value.
func (t *Tracker) RecordRateLimited(model string, retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = t.defaultBackoff
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.limitedUntil[model] = t.now().Add(retryAfter)
}

// RecordSuccess clears any limited state for a model. A successful call
// after expiry confirms recovery.
func (t *Tracker) RecordSuccess(model string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.limitedUntil, model)
}
