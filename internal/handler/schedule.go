package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"chorebank/internal/auth"
	"chorebank/internal/model"
	"chorebank/internal/recurrence"
	"chorebank/internal/store"
	"chorebank/internal/websocket"
)

type ScheduleHandler struct {
	scheduleStore *store.ScheduleStore
	templateStore *store.TemplateStore
	familyStore   *store.FamilyStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewScheduleHandler(ss *store.ScheduleStore, ts *store.TemplateStore, fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{scheduleStore: ss, templateStore: ts, familyStore: fs, hub: hub, logger: logger}
}

func (h *ScheduleHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

type scheduleRequest struct {
	TemplateID     int64   `json:"template_id"`
	ChildID        int64   `json:"child_id"`
	RecurrenceRule string  `json:"recurrence_rule"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := recurrence.Parse(req.RecurrenceRule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurrence rule")
		return
	}

	start, err := parseDatePtr(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := parseDatePtr(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		writeError(w, http.StatusBadRequest, "end_date must not precede start_date")
		return
	}

	familyID := auth.FamilyID(r.Context())

	tpl, err := h.templateStore.GetByID(req.TemplateID)
	if err != nil {
		h.logger.Error("get template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check template")
		return
	}
	if tpl == nil || tpl.FamilyID != familyID {
		writeError(w, http.StatusBadRequest, "template not found")
		return
	}
	if tpl.Archived {
		writeError(w, http.StatusBadRequest, "template is archived")
		return
	}

	child, err := h.familyStore.GetMember(req.ChildID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check family member")
		return
	}
	if child == nil || child.FamilyID != familyID {
		writeError(w, http.StatusBadRequest, "family member not found")
		return
	}

	schedule, err := h.scheduleStore.Create(familyID, req.TemplateID, req.ChildID, req.RecurrenceRule, start, end)
	if err != nil {
		h.logger.Error("create schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create schedule")
		return
	}

	h.broadcast(familyID, websocket.NewMessage("schedule", "created", schedule.ID, nil))
	writeJSON(w, http.StatusCreated, schedule)
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		schedules []model.ChoreSchedule
		err       error
	)
	if r.URL.Query().Get("active") == "true" {
		schedules, err = h.scheduleStore.ListActive(auth.FamilyID(r.Context()))
	} else {
		schedules, err = h.scheduleStore.List(auth.FamilyID(r.Context()))
	}
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []model.ChoreSchedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.scheduleFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.scheduleFromPath(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if _, err := recurrence.Parse(req.RecurrenceRule); err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurrence rule")
		return
	}

	start, err := parseDatePtr(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := parseDatePtr(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	updated, err := h.scheduleStore.Update(schedule.ID, req.RecurrenceRule, start, end)
	if err != nil {
		h.logger.Error("update schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}

	h.broadcast(schedule.FamilyID, websocket.NewMessage("schedule", "updated", schedule.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *ScheduleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.scheduleFromPath(w, r)
	if !ok {
		return
	}

	if err := h.scheduleStore.Deactivate(schedule.ID); err != nil {
		h.logger.Error("deactivate schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deactivate schedule")
		return
	}

	h.broadcast(schedule.FamilyID, websocket.NewMessage("schedule", "deactivated", schedule.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) Activate(w http.ResponseWriter, r *http.Request) {
	schedule, ok := h.scheduleFromPath(w, r)
	if !ok {
		return
	}

	if err := h.scheduleStore.Activate(schedule.ID); err != nil {
		h.logger.Error("activate schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to activate schedule")
		return
	}

	h.broadcast(schedule.FamilyID, websocket.NewMessage("schedule", "activated", schedule.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ScheduleHandler) scheduleFromPath(w http.ResponseWriter, r *http.Request) (*model.ChoreSchedule, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	schedule, err := h.scheduleStore.GetByID(id)
	if err != nil {
		h.logger.Error("get schedule", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return nil, false
	}
	if schedule == nil || schedule.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "schedule not found")
		return nil, false
	}
	return schedule, true
}
