package treasure

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"TreasureWatch/internal/models"
	"TreasureWatch/utils"
)

// itemIDRegex pulls the numeric item id out of a detail page href.
var itemIDRegex = regexp.MustCompile(`/item/(\d+)`)

// ParseListing extracts up to limit items from the rendered listing HTML in
// document order, which on the sorted page is rank order. Entries that fail
// validation are skipped without aborting the rest of the list.
func ParseListing(html, siteBaseURL string, limit int, scrapedAt time.Time, log zerolog.Logger) ([]models.Item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var items []models.Item
	doc.Find(itemSelector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if limit > 0 && len(items) >= limit {
			return false
		}
		item, ok := extractItem(sel, siteBaseURL, scrapedAt)
		if !ok {
			log.Warn().Int("index", i).Msg("skipping listing entry with missing name or price")
			return true
		}
		items = append(items, item)
		return true
	})
	return items, nil
}

// extractItem reads one grid entry. The item name lives in the image alt
// text; the store tag, when present, is folded into the name so the same
// product offered by two stores fingerprints differently.
func extractItem(sel *goquery.Selection, siteBaseURL string, scrapedAt time.Time) (models.Item, bool) {
	var item models.Item

	if href, ok := sel.Find("a.cm-itemlist_itemcode_link").Attr("href"); ok {
		if m := itemIDRegex.FindStringSubmatch(href); m != nil {
			item.ItemID = m[1]
			item.ItemURL = siteBaseURL + href
		}
	}

	img := sel.Find("img").First()
	item.Name = strings.TrimSpace(img.AttrOr("alt", ""))

	imgURL := img.AttrOr("src", "")
	if imgURL == "" {
		imgURL = img.AttrOr("data-src", "")
	}
	if imgURL != "" && !strings.HasPrefix(imgURL, "http") {
		imgURL = siteBaseURL + imgURL
	}
	item.ImageURL = imgURL

	item.Price = utils.ExtractPrice(sel.Find(".cm-itemlist_price").Text())
	item.StoreName = strings.TrimSpace(sel.Find(".cm-tag_store_free").Text())

	if len([]rune(item.Name)) <= 3 || item.Price == "0" {
		return models.Item{}, false
	}

	if item.StoreName != "" {
		item.Name = item.Name + " [" + item.StoreName + "]"
	}
	item.Hash = models.Fingerprint(item.Name, item.Price)
	item.ScrapedAt = scrapedAt
	return item, true
}
