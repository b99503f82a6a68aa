package api

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/malwarebo/statsbot/models"
	"github.com/malwarebo/statsbot/webhooks"
)

type SnapshotReader interface {
	LatestSnapshot(ctx context.Context, guildID string) (*models.StatsSnapshot, error)
}

type SnapshotCache interface {
	GetSnapshot(ctx context.Context, guildID string) (*models.StatsSnapshot, error)
}

type WebhookStatusReader interface {
	Status() []webhooks.DestinationStatus
}

type StatsHandler struct {
	guildID string
	store   SnapshotReader
	cache   SnapshotCache
	hooks   WebhookStatusReader
}

func CreateStatsHandler(guildID string, store SnapshotReader, cache SnapshotCache, hooks WebhookStatusReader) *StatsHandler {
	return &StatsHandler{
		guildID: guildID,
		store:   store,
		cache:   cache,
		hooks:   hooks,
	}
}

// HandleStats serves the latest snapshot, cache first.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if snapshot, err := h.cache.GetSnapshot(r.Context(), h.guildID); err == nil {
			writeJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	snapshot, err := h.store.LatestSnapshot(r.Context(), h.guildID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no snapshot recorded yet"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func (h *StatsHandler) HandleWebhookStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"destinations": h.hooks.Status(),
	})
}
