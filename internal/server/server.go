package server

import (
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"TreasureWatch/internal/breaker"
	"TreasureWatch/internal/database"
	"TreasureWatch/internal/ledger"
	"TreasureWatch/internal/snapshot"
	"TreasureWatch/internal/store"
)

// Start serves the read-only status API. Handlers read the persisted
// documents and the archive database rather than the watcher's live structs,
// so the poll loop stays the only writer of its in-memory state.
func Start(docs *store.DocumentStore, archive *database.ArchiveRepository, port string, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", statusHandler(docs))
	mux.HandleFunc("/notifications", notificationsHandler(archive))

	log.Info().Str("port", port).Msg("status API listening")
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Error().Err(err).Msg("status API stopped")
	}
}

func statusHandler(docs *store.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state, snap, history map[string]any
		response := map[string]any{}

		if docs.Read(breaker.StateDocument, &state) {
			response["circuitBreaker"] = state["circuitBreaker"]
		}
		if docs.Read(snapshot.SnapshotDocument, &snap) {
			response["snapshot"] = snap
		}
		if docs.Read(ledger.HistoryDocument, &history) {
			if records, ok := history["history"].([]any); ok {
				response["historySize"] = len(records)
			}
		}

		writeJSON(w, response)
	}
}

func notificationsHandler(archive *database.ArchiveRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit < 1 || limit > 500 {
			limit = 50
		}

		records, err := archive.RecentNotifications(limit)
		if err != nil {
			http.Error(w, "failed to read notification archive", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]any{
			"count":         len(records),
			"notifications": records,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
