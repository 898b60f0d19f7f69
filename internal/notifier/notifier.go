package notifier

import "TreasureWatch/internal/models"

// Notifier delivers one alert for an item. A nil error means delivered; any
// error means the delivery did not happen and may be retried on a later
// rank-change cycle.
type Notifier interface {
	Send(item models.Item) error
}
