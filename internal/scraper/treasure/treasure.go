package treasure

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"

	"TreasureWatch/internal/models"
	"TreasureWatch/pkg/config"
)

// itemSelector matches one listing entry on the search result grid.
const itemSelector = "li.pj-search_item"

// Scraper extracts the ranked item list from the Treasure Factory EC search
// page. The listing is sorted client-side after load, so the scraper waits
// for the DOM to settle before reading it.
type Scraper struct {
	Browser *rod.Browser
	Conf    config.TreasureConfig

	log   zerolog.Logger
	sleep func(time.Duration)
}

// New returns a scraper bound to an already connected browser.
func New(browser *rod.Browser, conf config.TreasureConfig, log zerolog.Logger) *Scraper {
	return &Scraper{Browser: browser, Conf: conf, log: log, sleep: time.Sleep}
}

// FetchRanked loads the listing page, waits for the client-side sort to
// settle, and returns the extracted items in rank order.
func (s *Scraper) FetchRanked() ([]models.Item, error) {
	page, err := stealth.Page(s.Browser)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.MustClose()

	s.log.Info().Str("url", s.Conf.BaseURL).Msg("loading listing page")
	if err := page.Timeout(s.Conf.PageLoadTimeout()).Navigate(s.Conf.BaseURL); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	page.WaitLoad()

	if _, err := page.Timeout(s.Conf.SelectorTimeout()).Element(itemSelector); err != nil {
		return nil, fmt.Errorf("listing items never appeared: %w", err)
	}
	if err := s.waitForStableDOM(page); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}

	items, err := ParseListing(html, s.Conf.SiteBaseURL, s.Conf.ItemLimit, time.Now(), s.log)
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("items", len(items)).Msg("listing fetched")
	return items, nil
}

// waitForStableDOM samples the item count until it holds steady for the
// configured number of consecutive checks. The page reorders entries with
// JavaScript after load; reading too early yields the unsorted list.
func (s *Scraper) waitForStableDOM(page *rod.Page) error {
	// give the client-side sort a moment before sampling
	s.sleep(3 * time.Second)

	stable, last := 0, 0
	for i := 0; i < 15; i++ {
		elems, err := page.Elements(itemSelector)
		if err != nil {
			return fmt.Errorf("count listing items: %w", err)
		}
		count := len(elems)

		if count == last && count > 0 {
			stable++
			if stable >= s.Conf.StabilityChecks {
				return nil
			}
		} else {
			if stable > 0 {
				s.log.Info().Int("from", last).Int("to", count).Msg("item count moved, stability reset")
			}
			stable = 0
		}

		last = count
		s.sleep(s.Conf.StabilityInterval())
	}

	if last > 0 {
		s.log.Warn().Int("items", last).Msg("dom never fully settled, continuing with current list")
		return nil
	}
	return errors.New("listing dom never stabilized")
}
