package handler

import (
	"log/slog"
	"net/http"
	"time"

	"chorebank/internal/auth"
	"chorebank/internal/chore"
	"chorebank/internal/websocket"
)

// AdminHandler exposes the scheduled jobs (instance generation, the expiry
// sweep, duplicate cleanup) as endpoints so admins can run them on demand.
type AdminHandler struct {
	generator *chore.Generator
	lifecycle *chore.Lifecycle
	cleaner   *chore.Cleaner
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewAdminHandler(gen *chore.Generator, lc *chore.Lifecycle, cl *chore.Cleaner, hub *websocket.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{generator: gen, lifecycle: lc, cleaner: cl, hub: hub, logger: logger}
}

func (h *AdminHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

// Generate creates today's instances (or a specific date's via ?date=)
// from the family's active schedules. Safe to call repeatedly.
func (h *AdminHandler) Generate(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	familyID := auth.FamilyID(r.Context())
	created, err := h.generator.Generate(familyID, date)
	if err != nil {
		h.logger.Error("generate instances", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate instances")
		return
	}

	if len(created) > 0 {
		h.broadcast(familyID, websocket.NewMessage("instances", "generated", 0, map[string]any{
			"count": len(created),
		}))
	}
	if created == nil {
		created = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

// Sweep expires overdue pending instances.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	result, err := h.lifecycle.Sweep(familyID, time.Now().UTC())
	if err != nil {
		h.logger.Error("sweep instances", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sweep instances")
		return
	}

	if result.Missed > 0 || result.Expired > 0 {
		h.broadcast(familyID, websocket.NewMessage("instances", "swept", 0, map[string]any{
			"missed":  result.Missed,
			"expired": result.Expired,
		}))
	}
	writeJSON(w, http.StatusOK, result)
}

// Cleanup repairs duplicate schedules and instances left behind by older
// versions of the generator.
func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())
	result, err := h.cleaner.Run(familyID)
	if err != nil {
		h.logger.Error("cleanup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to run cleanup")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
