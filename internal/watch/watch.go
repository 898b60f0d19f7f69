package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/breaker"
	"TreasureWatch/internal/database"
	"TreasureWatch/internal/detector"
	"TreasureWatch/internal/ledger"
	"TreasureWatch/internal/models"
	"TreasureWatch/internal/notifier"
	"TreasureWatch/internal/scraper"
	"TreasureWatch/internal/snapshot"
	"TreasureWatch/utils"
)

// Outcome classifies one poll cycle.
type Outcome int

const (
	// OutcomeSkipped means the circuit breaker blocked the cycle. Neutral:
	// neither a success nor a failure is recorded.
	OutcomeSkipped Outcome = iota
	// OutcomeFailed means the fetch exhausted its retries or processing
	// panicked; exactly one breaker failure was recorded.
	OutcomeFailed
	// OutcomeFirstRun means a baseline was registered without notifying.
	OutcomeFirstRun
	// OutcomeNoChange means the previous top is still rank 1.
	OutcomeNoChange
	// OutcomeChanged means candidates were processed (sent or suppressed).
	OutcomeChanged
)

// Config holds the poll loop timings.
type Config struct {
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// Watcher orchestrates fetch-detect-notify cycles. One cycle runs to
// completion, retries and dispatches included, before the next interval
// starts; cycles never overlap.
type Watcher struct {
	extractor scraper.Extractor
	notifier  notifier.Notifier
	breaker   *breaker.CircuitBreaker
	ledger    *ledger.Ledger
	snapshots *snapshot.Store
	archive   *database.ArchiveRepository
	conf      Config

	log   zerolog.Logger
	now   func() time.Time
	sleep func(time.Duration)
}

// New wires a watcher from its collaborators. archive may be nil when no
// observation history is wanted.
func New(extractor scraper.Extractor, n notifier.Notifier, cb *breaker.CircuitBreaker,
	l *ledger.Ledger, snaps *snapshot.Store, archive *database.ArchiveRepository,
	conf Config, log zerolog.Logger) *Watcher {
	return &Watcher{
		extractor: extractor,
		notifier:  n,
		breaker:   cb,
		ledger:    l,
		snapshots: snaps,
		archive:   archive,
		conf:      conf,
		log:       log,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Run executes cycles until ctx is cancelled. Shutdown happens between
// cycles; a cycle that already started always completes.
func (w *Watcher) Run(ctx context.Context) {
	loop := 0
	for {
		loop++
		w.log.Info().Int("loop", loop).Msg("cycle start")
		outcome := w.RunCycle()
		w.log.Info().Int("loop", loop).Str("outcome", outcome.String()).Msg("cycle done")

		select {
		case <-ctx.Done():
			w.log.Info().Msg("shutting down between cycles")
			return
		case <-time.After(w.conf.Interval):
		}
	}
}

// RunCycle performs one fetch-detect-notify pass.
func (w *Watcher) RunCycle() (outcome Outcome) {
	if !w.breaker.IsAvailable() {
		return OutcomeSkipped
	}

	list, err := w.fetchWithRetries()
	if err != nil {
		w.log.Error().Err(err).Msg("fetch failed")
		w.breaker.RecordFailure()
		return OutcomeFailed
	}
	w.breaker.RecordSuccess()

	// a panic anywhere in processing counts as one cycle failure and must
	// not take the loop down
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Msg("cycle processing panicked")
			w.breaker.RecordFailure()
			outcome = OutcomeFailed
		}
	}()

	return w.process(list)
}

// fetchWithRetries attempts the extractor up to MaxRetries times with a fixed
// delay in between. Zero items counts as a failed attempt. However many
// attempts it takes, the caller records at most one breaker outcome.
func (w *Watcher) fetchWithRetries() ([]models.Item, error) {
	var lastErr error
	for attempt := 1; attempt <= w.conf.MaxRetries; attempt++ {
		if attempt > 1 {
			w.log.Info().Int("attempt", attempt).Int("max", w.conf.MaxRetries).Msg("retrying fetch")
			w.sleep(w.conf.RetryDelay)
		}

		items, err := w.extractor.FetchRanked()
		if err == nil && len(items) == 0 {
			err = scraper.ErrNoItems
		}
		if err == nil {
			return items, nil
		}
		lastErr = err
		w.log.Warn().Err(err).Int("attempt", attempt).Msg("fetch attempt failed")
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", w.conf.MaxRetries, lastErr)
}

func (w *Watcher) process(list []models.Item) Outcome {
	top := list[0]
	w.archiveObservation(top)

	prev := w.snapshots.Load()
	if prev == nil {
		w.log.Info().
			Str("name", utils.Truncate(top.Name, 60)).
			Str("price", top.Price).
			Msg("first run, registering baseline without notifying")
		w.saveSnapshot(top)
		return OutcomeFirstRun
	}

	candidates, prevFound := detector.Candidates(prev, list)
	if !prevFound {
		w.log.Info().Msg("previous leader left the window, alerting on the new top only")
	}

	if len(candidates) == 0 {
		if top.Hash != prev.Hash {
			// re-sync the baseline silently
			w.saveSnapshot(top)
		}
		w.log.Info().Msg("no rank change")
		return OutcomeNoChange
	}

	sent := 0
	for i, cand := range candidates {
		clog := w.log.With().
			Int("position", i+1).
			Str("name", utils.Truncate(cand.Name, 60)).
			Str("hash", cand.Hash).
			Logger()

		if !w.ledger.ShouldNotify(cand.Hash) {
			continue
		}
		if err := w.notifier.Send(cand); err != nil {
			// not recorded in the ledger: a failed delivery stays eligible
			// for the next rank-change cycle
			clog.Warn().Err(err).Msg("notification delivery failed")
			continue
		}
		if err := w.ledger.Add(cand); err != nil {
			clog.Warn().Err(err).Msg("could not persist notification record")
		}
		w.archiveNotification(cand)
		sent++
		clog.Info().Msg("notification sent")
	}

	w.log.Info().Int("sent", sent).Int("candidates", len(candidates)).Msg("rank change processed")

	// the new top becomes the baseline even when every dispatch was
	// suppressed or failed
	w.saveSnapshot(top)
	return OutcomeChanged
}

func (w *Watcher) saveSnapshot(top models.Item) {
	if err := w.snapshots.Save(top); err != nil {
		w.log.Warn().Err(err).Msg("could not persist snapshot")
	}
}

func (w *Watcher) archiveObservation(top models.Item) {
	if w.archive == nil {
		return
	}
	if err := w.archive.SaveObservation(top); err != nil {
		w.log.Warn().Err(err).Msg("could not archive observation")
	}
}

func (w *Watcher) archiveNotification(item models.Item) {
	if w.archive == nil {
		return
	}
	if err := w.archive.SaveNotification(item, w.now()); err != nil {
		w.log.Warn().Err(err).Msg("could not archive notification")
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeFirstRun:
		return "first-run"
	case OutcomeNoChange:
		return "no-change"
	case OutcomeChanged:
		return "changed"
	default:
		return "unknown"
	}
}
