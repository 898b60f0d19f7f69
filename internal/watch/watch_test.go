package watch

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/breaker"
	"TreasureWatch/internal/ledger"
	"TreasureWatch/internal/models"
	"TreasureWatch/internal/snapshot"
	"TreasureWatch/internal/store"
)

type fakeExtractor struct {
	fetch func() ([]models.Item, error)
	calls int
}

func (f *fakeExtractor) FetchRanked() ([]models.Item, error) {
	f.calls++
	return f.fetch()
}

type fakeNotifier struct {
	sent    []string // item names in dispatch order
	fail    bool
	panicOn string
}

func (f *fakeNotifier) Send(item models.Item) error {
	if f.panicOn != "" && item.Name == f.panicOn {
		panic("notifier exploded")
	}
	if f.fail {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, item.Name)
	return nil
}

type fixture struct {
	watcher   *Watcher
	extractor *fakeExtractor
	notifier  *fakeNotifier
	breaker   *breaker.CircuitBreaker
	ledger    *ledger.Ledger
	snapshots *snapshot.Store
}

func newFixture(t *testing.T, fetch func() ([]models.Item, error)) *fixture {
	t.Helper()
	docs, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}

	log := zerolog.Nop()
	f := &fixture{
		extractor: &fakeExtractor{fetch: fetch},
		notifier:  &fakeNotifier{},
		breaker:   breaker.New(docs, 5, 300*time.Second, log),
		ledger:    ledger.New(docs, 6*time.Hour, 100, log),
		snapshots: snapshot.New(docs, log),
	}
	conf := Config{Interval: time.Second, MaxRetries: 3, RetryDelay: time.Second}
	f.watcher = New(f.extractor, f.notifier, f.breaker, f.ledger, f.snapshots, nil, conf, log)
	f.watcher.sleep = func(time.Duration) {}
	return f
}

func item(name string) models.Item {
	return models.Item{Name: name, Price: "1000", Hash: models.Fingerprint(name, "1000")}
}

func list(names ...string) []models.Item {
	items := make([]models.Item, len(names))
	for i, n := range names {
		items[i] = item(n)
	}
	return items
}

func fixed(items []models.Item) func() ([]models.Item, error) {
	return func() ([]models.Item, error) { return items, nil }
}

func TestFirstRunRegistersBaselineWithoutNotifying(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B", "C")))

	if got := f.watcher.RunCycle(); got != OutcomeFirstRun {
		t.Fatalf("outcome = %v; want first-run", got)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("first run sent %v; want nothing", f.notifier.sent)
	}
	snap := f.snapshots.Load()
	if snap == nil || snap.Name != "A" {
		t.Errorf("snapshot = %+v; want A", snap)
	}
}

func TestNoChangeWhenTopHolds(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B", "C")))
	f.watcher.RunCycle() // first run

	for i := 0; i < 3; i++ {
		if got := f.watcher.RunCycle(); got != OutcomeNoChange {
			t.Fatalf("cycle %d outcome = %v; want no-change", i+2, got)
		}
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("repeated identical cycles sent %v; want nothing", f.notifier.sent)
	}
}

func TestNewLeaderNotifiedAndSnapshotAdvances(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B", "C")))
	f.watcher.RunCycle()

	f.extractor.fetch = fixed(list("B", "A", "C"))
	if got := f.watcher.RunCycle(); got != OutcomeChanged {
		t.Fatalf("outcome = %v; want changed", got)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "B" {
		t.Errorf("sent = %v; want [B]", f.notifier.sent)
	}
	if snap := f.snapshots.Load(); snap == nil || snap.Name != "B" {
		t.Errorf("snapshot = %+v; want B", snap)
	}
}

func TestDisplacedLeaderAlertsOnNewTopOnly(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B", "C")))
	f.watcher.RunCycle()

	f.extractor.fetch = fixed(list("B", "C", "D"))
	if got := f.watcher.RunCycle(); got != OutcomeChanged {
		t.Fatalf("outcome = %v; want changed", got)
	}
	if len(f.notifier.sent) != 1 || f.notifier.sent[0] != "B" {
		t.Errorf("sent = %v; want [B] only, not everything above the vanished leader", f.notifier.sent)
	}
}

func TestMultipleNewLeadersDispatchedInRankOrder(t *testing.T) {
	f := newFixture(t, fixed(list("C", "D")))
	f.watcher.RunCycle()

	f.extractor.fetch = fixed(list("A", "B", "C", "D"))
	if got := f.watcher.RunCycle(); got != OutcomeChanged {
		t.Fatalf("outcome = %v; want changed", got)
	}
	if len(f.notifier.sent) != 2 || f.notifier.sent[0] != "A" || f.notifier.sent[1] != "B" {
		t.Errorf("sent = %v; want [A B] in rank order", f.notifier.sent)
	}
}

func TestCooldownSuppressionStillAdvancesSnapshot(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B")))
	f.watcher.RunCycle()

	// B was notified recently, inside the 6 hour cooldown
	if err := f.ledger.Add(item("B")); err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	f.extractor.fetch = fixed(list("B", "A"))
	if got := f.watcher.RunCycle(); got != OutcomeChanged {
		t.Fatalf("outcome = %v; want changed", got)
	}
	if len(f.notifier.sent) != 0 {
		t.Errorf("sent = %v; want suppressed by cooldown", f.notifier.sent)
	}
	if snap := f.snapshots.Load(); snap == nil || snap.Name != "B" {
		t.Errorf("snapshot = %+v; want B even though the alert was suppressed", snap)
	}
}

func TestExhaustedRetriesRecordOneFailure(t *testing.T) {
	f := newFixture(t, func() ([]models.Item, error) {
		return nil, errors.New("render timeout")
	})

	if got := f.watcher.RunCycle(); got != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed", got)
	}
	if f.extractor.calls != 3 {
		t.Errorf("extractor called %d times; want 3", f.extractor.calls)
	}
	if f.breaker.FailureCount() != 1 {
		t.Errorf("breaker failures = %d; want exactly 1 per cycle, not per attempt", f.breaker.FailureCount())
	}
}

func TestEmptyListIsAFetchFailure(t *testing.T) {
	f := newFixture(t, fixed(nil))

	if got := f.watcher.RunCycle(); got != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed", got)
	}
	if f.breaker.FailureCount() != 1 {
		t.Errorf("breaker failures = %d; want 1", f.breaker.FailureCount())
	}
	if snap := f.snapshots.Load(); snap != nil {
		t.Errorf("snapshot = %+v after empty fetch; want none", snap)
	}
}

func TestSkippedCycleIsNeutral(t *testing.T) {
	f := newFixture(t, fixed(list("A")))
	for i := 0; i < 5; i++ {
		f.breaker.RecordFailure()
	}

	if got := f.watcher.RunCycle(); got != OutcomeSkipped {
		t.Fatalf("outcome = %v; want skipped", got)
	}
	if f.extractor.calls != 0 {
		t.Errorf("extractor called %d times during a skipped cycle; want 0", f.extractor.calls)
	}
	if f.breaker.FailureCount() != 5 {
		t.Errorf("breaker failures = %d after skip; want unchanged 5", f.breaker.FailureCount())
	}
}

func TestSuccessfulFetchResetsBreaker(t *testing.T) {
	fetchErr := errors.New("boom")
	failing := true
	f := newFixture(t, nil)
	f.extractor.fetch = func() ([]models.Item, error) {
		if failing {
			return nil, fetchErr
		}
		return list("A"), nil
	}

	f.watcher.RunCycle()
	f.watcher.RunCycle()
	if f.breaker.FailureCount() != 2 {
		t.Fatalf("breaker failures = %d; want 2", f.breaker.FailureCount())
	}

	failing = false
	if got := f.watcher.RunCycle(); got != OutcomeFirstRun {
		t.Fatalf("outcome = %v; want first-run", got)
	}
	if f.breaker.FailureCount() != 0 {
		t.Errorf("breaker failures = %d after success; want 0", f.breaker.FailureCount())
	}
}

func TestFailedDeliveryStaysOutOfLedger(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B")))
	f.watcher.RunCycle()

	f.notifier.fail = true
	f.extractor.fetch = fixed(list("B", "A"))
	if got := f.watcher.RunCycle(); got != OutcomeChanged {
		t.Fatalf("outcome = %v; want changed", got)
	}

	if f.ledger.Size() != 0 {
		t.Errorf("ledger has %d records after a failed delivery; want 0", f.ledger.Size())
	}
	if !f.ledger.ShouldNotify(item("B").Hash) {
		t.Error("failed delivery started a cooldown; the item must stay eligible")
	}
	// the baseline still advances, so B retries only via a later recurrence
	if snap := f.snapshots.Load(); snap == nil || snap.Name != "B" {
		t.Errorf("snapshot = %+v; want B", snap)
	}
}

func TestDeliveryFailureDoesNotBlockLaterCandidates(t *testing.T) {
	f := newFixture(t, fixed(list("C")))
	f.watcher.RunCycle()

	sentB := false
	f.extractor.fetch = fixed(list("A", "B", "C"))

	// a notifier that refuses A but delivers B
	f.watcher.notifier = notifierFunc(func(it models.Item) error {
		if it.Name == "A" {
			return errors.New("refused")
		}
		if it.Name == "B" {
			sentB = true
		}
		return nil
	})

	if got := f.watcher.RunCycle(); got != OutcomeChanged {
		t.Fatalf("outcome = %v; want changed", got)
	}
	if !sentB {
		t.Error("failure for the first candidate blocked the second")
	}
	if f.ledger.Size() != 1 {
		t.Errorf("ledger has %d records; want 1 (only the delivered candidate)", f.ledger.Size())
	}
}

type notifierFunc func(models.Item) error

func (fn notifierFunc) Send(item models.Item) error { return fn(item) }

func TestProcessingPanicCountsOneFailure(t *testing.T) {
	f := newFixture(t, fixed(list("A", "B")))
	f.watcher.RunCycle()

	f.notifier.panicOn = "B"
	f.extractor.fetch = fixed(list("B", "A"))
	if got := f.watcher.RunCycle(); got != OutcomeFailed {
		t.Fatalf("outcome = %v; want failed after a processing panic", got)
	}
	if f.breaker.FailureCount() != 1 {
		t.Errorf("breaker failures = %d; want 1", f.breaker.FailureCount())
	}
}

func TestRetrySucceedsMidCycle(t *testing.T) {
	attempts := 0
	f := newFixture(t, nil)
	f.extractor.fetch = func() ([]models.Item, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("flaky")
		}
		return list("A"), nil
	}

	if got := f.watcher.RunCycle(); got != OutcomeFirstRun {
		t.Fatalf("outcome = %v; want first-run after in-cycle retries", got)
	}
	if f.breaker.FailureCount() != 0 {
		t.Errorf("breaker failures = %d; want 0, retries inside a cycle are not failures", f.breaker.FailureCount())
	}
}
