package ledger

import (
	"time"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/models"
	"TreasureWatch/internal/store"
	"TreasureWatch/utils"
)

// HistoryDocument is the persisted notification history file name.
const HistoryDocument = "treasure_notification_history.json"

type historyDocument struct {
	CooldownHours float64                     `json:"cooldownHours"`
	LastUpdated   time.Time                   `json:"lastUpdated"`
	History       []models.NotificationRecord `json:"history"`
}

// Ledger remembers which fingerprints were already notified and when, so the
// same item is not announced again inside the cooldown window. The history is
// bounded: only the most recently appended records are kept.
type Ledger struct {
	docs     *store.DocumentStore
	cooldown time.Duration
	limit    int
	history  []models.NotificationRecord

	now func() time.Time
	log zerolog.Logger
}

// New restores the ledger from its persisted document; an unreadable document
// starts an empty history.
func New(docs *store.DocumentStore, cooldown time.Duration, limit int, log zerolog.Logger) *Ledger {
	l := &Ledger{
		docs:     docs,
		cooldown: cooldown,
		limit:    limit,
		now:      time.Now,
		log:      log,
	}
	var doc historyDocument
	if docs.Read(HistoryDocument, &doc) {
		l.history = doc.History
		log.Info().Int("records", len(l.history)).Msg("notification history loaded")
	}
	return l
}

// ShouldNotify reports whether hash may be notified now. Any record with the
// same hash younger than the cooldown suppresses it; stale records for the
// hash are ignored. Unrelated fingerprints never interact.
func (l *Ledger) ShouldNotify(hash string) bool {
	now := l.now()
	for _, rec := range l.history {
		if rec.Hash != hash {
			continue
		}
		elapsed := now.Sub(rec.NotifiedAt)
		if elapsed < l.cooldown {
			l.log.Info().
				Str("name", utils.Truncate(rec.Name, 40)).
				Dur("remaining", l.cooldown-elapsed).
				Msg("duplicate notification suppressed")
			return false
		}
	}
	return true
}

// Add appends a record for a delivered notification and persists the history.
// When the history exceeds the limit, the oldest appended records are dropped.
func (l *Ledger) Add(item models.Item) error {
	l.history = append(l.history, models.NotificationRecord{
		Hash:       item.Hash,
		Name:       item.Name,
		Price:      item.Price,
		NotifiedAt: l.now(),
		ItemID:     item.ItemID,
		ItemURL:    item.ItemURL,
	})
	if len(l.history) > l.limit {
		l.history = l.history[len(l.history)-l.limit:]
	}
	return l.persist()
}

// Size returns the number of retained records.
func (l *Ledger) Size() int { return len(l.history) }

func (l *Ledger) persist() error {
	doc := historyDocument{
		CooldownHours: l.cooldown.Hours(),
		LastUpdated:   l.now(),
		History:       l.history,
	}
	return l.docs.Write(HistoryDocument, doc)
}
