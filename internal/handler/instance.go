package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chorebank/internal/auth"
	"chorebank/internal/calendar"
	"chorebank/internal/chore"
	"chorebank/internal/model"
	"chorebank/internal/store"
	"chorebank/internal/websocket"
)

type InstanceHandler struct {
	instanceStore *store.InstanceStore
	templateStore *store.TemplateStore
	familyStore   *store.FamilyStore
	lifecycle     *chore.Lifecycle
	generator     *chore.Generator
	calendar      *calendar.Client
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewInstanceHandler(is *store.InstanceStore, ts *store.TemplateStore, fs *store.FamilyStore, lc *chore.Lifecycle, gen *chore.Generator, cal *calendar.Client, hub *websocket.Hub, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{
		instanceStore: is,
		templateStore: ts,
		familyStore:   fs,
		lifecycle:     lc,
		generator:     gen,
		calendar:      cal,
		hub:           hub,
		logger:        logger,
	}
}

func (h *InstanceHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

// List returns the instances for a date (default today), optionally
// filtered to one child via ?child_id=. With ?status= it instead lists
// the family's instances in that state regardless of date — parents use
// ?status=completed as the approval queue.
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := auth.FamilyID(r.Context())

	if raw := r.URL.Query().Get("status"); raw != "" {
		instances, err := h.instanceStore.ListByStatus(familyID, model.InstanceStatus(raw))
		if err != nil {
			h.logger.Error("list instances", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list instances")
			return
		}
		if instances == nil {
			instances = []model.ChoreInstance{}
		}
		writeJSON(w, http.StatusOK, instances)
		return
	}

	date, err := parseDateQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	var instances []model.ChoreInstance
	if raw := r.URL.Query().Get("child_id"); raw != "" {
		childID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid child_id")
			return
		}
		instances, err = h.instanceStore.ListByChildAndDate(familyID, childID, date)
		if err != nil {
			h.logger.Error("list instances", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list instances")
			return
		}
	} else {
		instances, err = h.instanceStore.ListByDate(familyID, date)
		if err != nil {
			h.logger.Error("list instances", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list instances")
			return
		}
	}

	if instances == nil {
		instances = []model.ChoreInstance{}
	}
	writeJSON(w, http.StatusOK, instances)
}

func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	in, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, in)
}

type adhocRequest struct {
	TemplateID int64  `json:"template_id"`
	ChildID    int64  `json:"child_id"`
	Date       string `json:"date"`
}

// CreateAdhoc creates a one-off instance outside any schedule, due the
// same day.
func (h *InstanceHandler) CreateAdhoc(w http.ResponseWriter, r *http.Request) {
	var req adhocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	date := time.Now().UTC()
	if req.Date != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
	}

	familyID := auth.FamilyID(r.Context())

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

	in, err := h.generator.CreateDefault(familyID, req.TemplateID, req.ChildID, date)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	h.broadcast(familyID, websocket.NewMessage("instance", "created", in.ID, nil))
	writeJSON(w, http.StatusCreated, in)
}

type completeRequest struct {
	Proof model.CompletionProof `json:"proof"`
}

func (h *InstanceHandler) Complete(w http.ResponseWriter, r *http.Request) {
	in, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := h.lifecycle.Complete(in.ID, req.Proof)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	h.broadcast(in.FamilyID, websocket.NewMessage("instance", "completed", in.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

type approveRequest struct {
	Bonus int `json:"bonus"`
}

func (h *InstanceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	in, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Bonus < 0 {
		writeError(w, http.StatusBadRequest, "bonus must be >= 0")
		return
	}

	updated, err := h.lifecycle.Approve(in.ID, auth.MemberID(r.Context()), req.Bonus)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	// Best-effort calendar log of the approved chore. Never fails the
	// approval.
	h.publishCalendarEvent(r, updated)

	h.broadcast(in.FamilyID, websocket.NewMessage("instance", "approved", in.ID, map[string]any{
		"bucks_awarded": updated.BucksAwarded,
		"streak_count":  updated.StreakCount,
	}))
	writeJSON(w, http.StatusOK, updated)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *InstanceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	in, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	updated, err := h.lifecycle.Reject(in.ID, auth.MemberID(r.Context()), req.Reason)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	h.broadcast(in.FamilyID, websocket.NewMessage("instance", "rejected", in.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// ListCompletions returns the completion records of a multi-completion
// instance.
func (h *InstanceHandler) ListCompletions(w http.ResponseWriter, r *http.Request) {
	in, ok := h.instanceFromPath(w, r)
	if !ok {
		return
	}

	completions, err := h.instanceStore.ListCompletions(in.ID)
	if err != nil {
		h.logger.Error("list completions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if completions == nil {
		completions = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

func (h *InstanceHandler) ApproveCompletion(w http.ResponseWriter, r *http.Request) {
	in, completionID, ok := h.completionFromPath(w, r)
	if !ok {
		return
	}

	completion, err := h.lifecycle.ApproveCompletion(completionID, auth.MemberID(r.Context()))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	h.broadcast(in.FamilyID, websocket.NewMessage("completion", "approved", completion.ID, map[string]any{
		"instance_id":   in.ID,
		"bucks_awarded": completion.BucksAwarded,
	}))
	writeJSON(w, http.StatusOK, completion)
}

func (h *InstanceHandler) RejectCompletion(w http.ResponseWriter, r *http.Request) {
	in, completionID, ok := h.completionFromPath(w, r)
	if !ok {
		return
	}

	completion, err := h.lifecycle.RejectCompletion(completionID, auth.MemberID(r.Context()))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}

	h.broadcast(in.FamilyID, websocket.NewMessage("completion", "rejected", completion.ID, map[string]any{
		"instance_id": in.ID,
	}))
	writeJSON(w, http.StatusOK, completion)
}

func (h *InstanceHandler) publishCalendarEvent(r *http.Request, in *model.ChoreInstance) {
	if !h.calendar.Enabled() {
		return
	}

	tpl, err := h.templateStore.GetByID(in.TemplateID)
	if err != nil || tpl == nil {
		return
	}
	child, err := h.familyStore.GetMember(in.ChildID)
	if err != nil || child == nil {
		return
	}

	eventID, err := h.calendar.PublishInstance(r.Context(), in, tpl.Title, child.Name, tpl.TimeOfDay)
	if err != nil {
		h.logger.Warn("publish calendar event", "instance_id", in.ID, "error", err)
		return
	}
	if err := h.instanceStore.SetCalendarEventID(in.ID, eventID); err != nil {
		h.logger.Warn("store calendar event id", "instance_id", in.ID, "error", err)
	}
}

func (h *InstanceHandler) instanceFromPath(w http.ResponseWriter, r *http.Request) (*model.ChoreInstance, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	in, err := h.instanceStore.GetByID(id)
	if err != nil {
		h.logger.Error("get instance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get instance")
		return nil, false
	}
	if in == nil || in.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "instance not found")
		return nil, false
	}
	return in, true
}

// completionFromPath resolves {id} to an instance and {completion_id} to a
// completion on that instance.
func (h *InstanceHandler) completionFromPath(w http.ResponseWriter, r *http.Request) (*model.ChoreInstance, int64, bool) {
	in, ok := h.instanceFromPath(w, r)
	if !ok {
		return nil, 0, false
	}

	completionID, err := strconv.ParseInt(r.PathValue("completion_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid completion id")
		return nil, 0, false
	}

	completion, err := h.instanceStore.GetCompletion(completionID)
	if err != nil {
		h.logger.Error("get completion", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get completion")
		return nil, 0, false
	}
	if completion == nil || completion.InstanceID != in.ID {
		writeError(w, http.StatusNotFound, "completion not found")
		return nil, 0, false
	}
	return in, completionID, true
}
