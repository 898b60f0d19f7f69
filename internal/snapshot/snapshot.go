package snapshot

import (
	"time"

	"github.com/rs/zerolog"

	"TreasureWatch/internal/models"
	"TreasureWatch/internal/store"
	"TreasureWatch/utils"
)

// SnapshotDocument is the persisted top-item snapshot file name.
const SnapshotDocument = "treasure_snapshot.json"

type snapshotDocument struct {
	Timestamp time.Time   `json:"timestamp"`
	Top1      models.Item `json:"top1"`
}

// Store persists the single last-observed top-ranked item across restarts.
type Store struct {
	docs *store.DocumentStore
	now  func() time.Time
	log  zerolog.Logger
}

// New returns a snapshot store over the given document store.
func New(docs *store.DocumentStore, log zerolog.Logger) *Store {
	return &Store{docs: docs, now: time.Now, log: log}
}

// Load returns the persisted top item, or nil when no snapshot exists yet.
// A missing or corrupt document means first run, never an error.
func (s *Store) Load() *models.Item {
	var doc snapshotDocument
	if !s.docs.Read(SnapshotDocument, &doc) {
		return nil
	}
	if doc.Top1.Hash == "" {
		return nil
	}
	return &doc.Top1
}

// Save overwrites the snapshot with item and a fresh timestamp.
func (s *Store) Save(item models.Item) error {
	if err := s.docs.Write(SnapshotDocument, snapshotDocument{Timestamp: s.now(), Top1: item}); err != nil {
		return err
	}
	s.log.Info().
		Str("name", utils.Truncate(item.Name, 30)).
		Str("itemId", item.ItemID).
		Msg("snapshot saved")
	return nil
}
