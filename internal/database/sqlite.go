package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no cgo

	"TreasureWatch/internal/models"
)

// ArchiveRepository keeps an append-only history of what the watcher saw and
// sent. The JSON documents under data/ are the authoritative runtime state;
// the archive exists for inspection and the status API.
type ArchiveRepository struct {
	DB *sql.DB
}

// InitDB opens (and if necessary creates) the archive database.
func InitDB(filepath string) (*ArchiveRepository, error) {
	db, err := sql.Open("sqlite", filepath)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("ping archive db: %w", err)
	}

	createObservationsTableSQL := `
	CREATE TABLE IF NOT EXISTS observations (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"hash" TEXT,
		"name" TEXT,
		"price" TEXT,
		"item_id" TEXT,
		"item_url" TEXT,
		"image_url" TEXT,
		"observed_at" DATETIME
	);`
	if _, err = db.Exec(createObservationsTableSQL); err != nil {
		return nil, fmt.Errorf("create observations table: %w", err)
	}

	createNotificationsTableSQL := `
	CREATE TABLE IF NOT EXISTS notifications (
		"id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		"hash" TEXT,
		"name" TEXT,
		"price" TEXT,
		"item_id" TEXT,
		"item_url" TEXT,
		"notified_at" DATETIME
	);`
	if _, err = db.Exec(createNotificationsTableSQL); err != nil {
		return nil, fmt.Errorf("create notifications table: %w", err)
	}

	return &ArchiveRepository{DB: db}, nil
}

// Close closes the database connection.
func (repo *ArchiveRepository) Close() {
	repo.DB.Close()
}

// SaveObservation records the top-ranked item of one successful cycle.
func (repo *ArchiveRepository) SaveObservation(item models.Item) error {
	query := `
	INSERT INTO observations (hash, name, price, item_id, item_url, image_url, observed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`
	stmt, err := repo.DB.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(item.Hash, item.Name, item.Price, item.ItemID, item.ItemURL, item.ImageURL, item.ScrapedAt)
	return err
}

// SaveNotification records one delivered alert.
func (repo *ArchiveRepository) SaveNotification(item models.Item, notifiedAt time.Time) error {
	query := `
	INSERT INTO notifications (hash, name, price, item_id, item_url, notified_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`
	stmt, err := repo.DB.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(item.Hash, item.Name, item.Price, item.ItemID, item.ItemURL, notifiedAt)
	return err
}

// RecentNotifications returns the newest delivered alerts, newest first.
func (repo *ArchiveRepository) RecentNotifications(limit int) ([]models.NotificationRecord, error) {
	rows, err := repo.DB.Query(`
		SELECT hash, name, price, item_id, item_url, notified_at
		FROM notifications
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.NotificationRecord
	for rows.Next() {
		var rec models.NotificationRecord
		if err := rows.Scan(&rec.Hash, &rec.Name, &rec.Price, &rec.ItemID, &rec.ItemURL, &rec.NotifiedAt); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountObservations returns the total number of archived cycle observations.
func (repo *ArchiveRepository) CountObservations() (int, error) {
	var count int
	err := repo.DB.QueryRow(`SELECT COUNT(*) FROM observations`).Scan(&count)
	return count, err
}
