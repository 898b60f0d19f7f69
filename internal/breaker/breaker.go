package breaker

import (
	"time"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/store"
)

// StateDocument is the persisted circuit breaker state file name.
const StateDocument = "treasure_state.json"

type breakerState struct {
	FailureCount    int        `json:"failureCount"`
	LastFailureTime *time.Time `json:"lastFailureTime"`
	IsOpen          bool       `json:"isOpen"`
}

type stateDocument struct {
	CircuitBreaker breakerState `json:"circuitBreaker"`
	LastUpdated    time.Time    `json:"lastUpdated"`
}

// CircuitBreaker counts consecutive scrape failures and blocks polling while
// open. There is no separate half-open state: an open breaker flips back to
// closed lazily once the open timeout has elapsed, and the next failure
// re-opens it.
type CircuitBreaker struct {
	docs        *store.DocumentStore
	threshold   int
	openTimeout time.Duration

	failureCount int
	lastFailure  *time.Time
	open         bool

	now func() time.Time
	log zerolog.Logger
}

// New restores the breaker from its persisted document. An unreadable
// document starts a fresh closed breaker; startup never fails on state.
func New(docs *store.DocumentStore, threshold int, openTimeout time.Duration, log zerolog.Logger) *CircuitBreaker {
	cb := &CircuitBreaker{
		docs:        docs,
		threshold:   threshold,
		openTimeout: openTimeout,
		now:         time.Now,
		log:         log,
	}
	var doc stateDocument
	if docs.Read(StateDocument, &doc) {
		cb.failureCount = doc.CircuitBreaker.FailureCount
		cb.lastFailure = doc.CircuitBreaker.LastFailureTime
		cb.open = doc.CircuitBreaker.IsOpen
	}
	return cb
}

// IsAvailable reports whether a poll cycle may run. While open it checks the
// elapsed time since the last failure and, once the open timeout has passed,
// closes the breaker optimistically and persists the transition.
func (cb *CircuitBreaker) IsAvailable() bool {
	if !cb.open {
		return true
	}
	if cb.lastFailure == nil {
		return true
	}

	elapsed := cb.now().Sub(*cb.lastFailure)
	if elapsed >= cb.openTimeout {
		cb.log.Info().Msg("circuit breaker half-open, allowing a retry")
		cb.open = false
		cb.persist()
		return true
	}

	cb.log.Warn().
		Dur("remaining", cb.openTimeout-elapsed).
		Msg("circuit breaker open, skipping cycle")
	return false
}

// RecordSuccess closes the breaker and zeroes the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb.failureCount > 0 || cb.open {
		cb.log.Info().Msg("circuit breaker closed, upstream recovered")
	}
	cb.failureCount = 0
	cb.lastFailure = nil
	cb.open = false
	cb.persist()
}

// RecordFailure counts one failed cycle. Reaching the threshold opens the
// breaker; re-entering open keeps the existing count and timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.failureCount++
	t := cb.now()
	cb.lastFailure = &t

	if cb.failureCount >= cb.threshold {
		if !cb.open {
			cb.log.Error().
				Int("failures", cb.failureCount).
				Msg("circuit breaker opened")
			cb.open = true
		}
	} else {
		cb.log.Warn().
			Int("failures", cb.failureCount).
			Int("threshold", cb.threshold).
			Msg("scrape failure recorded")
	}
	cb.persist()
}

// FailureCount returns the current consecutive failure count.
func (cb *CircuitBreaker) FailureCount() int { return cb.failureCount }

// IsOpen reports whether the breaker is currently open.
func (cb *CircuitBreaker) IsOpen() bool { return cb.open }

func (cb *CircuitBreaker) persist() {
	doc := stateDocument{
		CircuitBreaker: breakerState{
			FailureCount:    cb.failureCount,
			LastFailureTime: cb.lastFailure,
			IsOpen:          cb.open,
		},
		LastUpdated: cb.now(),
	}
	if err := cb.docs.Write(StateDocument, doc); err != nil {
		// in-memory state stays authoritative for this process
		cb.log.Warn().Err(err).Msg("could not persist circuit breaker state")
	}
}
