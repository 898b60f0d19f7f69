package detector

import "TreasureWatch/internal/models"

// Candidates selects the items that newly qualify for notification, given the
// previously observed top item and a freshly fetched list ordered rank 1
// first. It reports the candidates and whether the previous top was found in
// the list.
//
// The list is scanned from rank 1 downward, collecting every item until the
// previous top's fingerprint appears; the matching item itself is excluded
// and the scan stops there. When the previous top is absent from the whole
// list it was displaced entirely, and only the new rank-1 item is a
// candidate, not everything above where it used to sit.
//
// A nil prevTop means first run: nothing to compare against, no candidates.
// An empty list is a fetch failure and must be rejected upstream.
func Candidates(prevTop *models.Item, list []models.Item) (candidates []models.Item, prevFound bool) {
	if prevTop == nil || len(list) == 0 {
		return nil, false
	}

	for _, item := range list {
		if item.Hash == prevTop.Hash {
			return candidates, true
		}
		candidates = append(candidates, item)
	}

	return []models.Item{list[0]}, false
}
