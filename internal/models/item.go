package models

import (
	"crypto/md5"
	"encoding/hex"
	"time"
)

// Item holds one listing entry as it looked at scrape time. The descriptive
// fields are taken from the page as-is and never interpreted further.
type Item struct {
	Name      string    `json:"name"`
	Price     string    `json:"price"`
	ImageURL  string    `json:"imgUrl"`
	ItemID    string    `json:"itemId"`
	ItemURL   string    `json:"itemUrl"`
	StoreName string    `json:"storeName"`
	Hash      string    `json:"hash"`
	ScrapedAt time.Time `json:"scrapedAt"`
}

// NotificationRecord is one entry of the notification history.
type NotificationRecord struct {
	Hash       string    `json:"hash"`
	Name       string    `json:"name"`
	Price      string    `json:"price"`
	NotifiedAt time.Time `json:"notifiedAt"`
	ItemID     string    `json:"itemId"`
	ItemURL    string    `json:"itemUrl"`
}

// Fingerprint derives the 8-character identity hash of a listing entry from
// its name and price. Identical inputs always yield the same value; unrelated
// items may collide and that is an accepted limitation, not an error.
func Fingerprint(name, price string) string {
	sum := md5.Sum([]byte(name + "_" + price))
	return hex.EncodeToString(sum[:])[:8]
}
