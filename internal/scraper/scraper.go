package scraper

import (
	"errors"

	"TreasureWatch/internal/models"
)

// ErrNoItems reports a fetch that rendered the page but extracted zero usable
// items. The poll loop treats it like any other fetch failure.
var ErrNoItems = errors.New("no items extracted from listing")

// Extractor turns the live listing page into an ordered item list, rank 1
// first. Implementations own their network and render timeouts; the poll
// loop only bounds the number of attempts.
type Extractor interface {
	FetchRanked() ([]models.Item, error)
}
