package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"chorebank/internal/auth"
	"chorebank/internal/model"
	"chorebank/internal/store"
	"chorebank/internal/websocket"
)

type TemplateHandler struct {
	templateStore *store.TemplateStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewTemplateHandler(ts *store.TemplateStore, hub *websocket.Hub, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templateStore: ts, hub: hub, logger: logger}
}

func (h *TemplateHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

type templateRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	BucksReward      int    `json:"bucks_reward"`
	ProofRequirement string `json:"proof_requirement"`
	TimeOfDay        string `json:"time_of_day"`
}

func (r *templateRequest) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return "title is required"
	}
	if r.BucksReward < 0 {
		return "bucks_reward must be >= 0"
	}
	if r.ProofRequirement == "" {
		r.ProofRequirement = string(model.ProofNone)
	}
	switch model.ProofRequirement(r.ProofRequirement) {
	case model.ProofPhoto, model.ProofNote, model.ProofNone:
	default:
		return "proof_requirement must be photo, note, or none"
	}
	if r.TimeOfDay == "" {
		r.TimeOfDay = string(model.TimeAnytime)
	}
	switch model.TimeOfDay(r.TimeOfDay) {
	case model.TimeMorning, model.TimeAfternoon, model.TimeEvening, model.TimeAnytime:
	default:
		return "time_of_day must be morning, afternoon, evening, or anytime"
	}
	return ""
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	familyID := auth.FamilyID(r.Context())
	tpl, err := h.templateStore.Create(familyID, req.Title, req.Description, req.BucksReward,
		model.ProofRequirement(req.ProofRequirement), model.TimeOfDay(req.TimeOfDay))
	if err != nil {
		h.logger.Error("create template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}

	h.broadcast(familyID, websocket.NewMessage("template", "created", tpl.ID, nil))
	writeJSON(w, http.StatusCreated, tpl)
}

func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	templates, err := h.templateStore.List(auth.FamilyID(r.Context()), includeArchived)
	if err != nil {
		h.logger.Error("list templates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.ChoreTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.templateStore.Update(tpl.ID, req.Title, req.Description, req.BucksReward,
		model.ProofRequirement(req.ProofRequirement), model.TimeOfDay(req.TimeOfDay))
	if err != nil {
		h.logger.Error("update template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update template")
		return
	}

	h.broadcast(tpl.FamilyID, websocket.NewMessage("template", "updated", tpl.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Archive retires a template. Archived templates stop generating instances
// but stay in the database so history and streaks keep their referent.
func (h *TemplateHandler) Archive(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}

	if err := h.templateStore.Archive(tpl.ID); err != nil {
		h.logger.Error("archive template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to archive template")
		return
	}

	h.broadcast(tpl.FamilyID, websocket.NewMessage("template", "archived", tpl.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	tpl, ok := h.templateFromPath(w, r)
	if !ok {
		return
	}

	if err := h.templateStore.Unarchive(tpl.ID); err != nil {
		h.logger.Error("unarchive template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unarchive template")
		return
	}

	h.broadcast(tpl.FamilyID, websocket.NewMessage("template", "unarchived", tpl.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

func (h *TemplateHandler) templateFromPath(w http.ResponseWriter, r *http.Request) (*model.ChoreTemplate, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	tpl, err := h.templateStore.GetByID(id)
	if err != nil {
		h.logger.Error("get template", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get template")
		return nil, false
	}
	if tpl == nil || tpl.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "template not found")
		return nil, false
	}
	return tpl, true
}
