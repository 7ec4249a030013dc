package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"

	"nafes-passport/backend/internal/gateway/util"
	"nafes-passport/backend/internal/watch"
)

// WatchHandler exposes the live roster feed.
type WatchHandler struct {
	DB *mongo.Database
}

// StreamRoster handles GET /api/students/stream as a server-sent event
// stream. Each event is the full roster ordered by total points; one is
// sent immediately on connect and another after every change.
func (h *WatchHandler) StreamRoster(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		util.WriteJSONError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	snapshots, cancel, err := watch.Roster(r.Context(), h.DB)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-snapshots:
			if !open {
				return
			}
			payload, err := json.Marshal(snapshot)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: roster\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
