package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"chorebank/internal/auth"
	"chorebank/internal/ledger"
	"chorebank/internal/model"
	"chorebank/internal/store"
	"chorebank/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	familyStore *store.FamilyStore
	ledger      *ledger.Service
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, fs *store.FamilyStore, ls *ledger.Service, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{rewardStore: rs, familyStore: fs, ledger: ls, hub: hub, logger: logger}
}

func (h *RewardHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

type rewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	BucksCost   int    `json:"bucks_cost"`
	Active      bool   `json:"active"`
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.BucksCost < 0 {
		writeError(w, http.StatusBadRequest, "bucks_cost must be >= 0")
		return
	}

	familyID := auth.FamilyID(r.Context())
	reward, err := h.rewardStore.Create(familyID, req.Title, req.Description, req.BucksCost)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.broadcast(familyID, websocket.NewMessage("reward", "created", reward.ID, nil))
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.List(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	reward, ok := h.rewardFromPath(w, r)
	if !ok {
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.BucksCost < 0 {
		writeError(w, http.StatusBadRequest, "bucks_cost must be >= 0")
		return
	}

	updated, err := h.rewardStore.Update(reward.ID, req.Title, req.Description, req.BucksCost, req.Active)
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.broadcast(reward.FamilyID, websocket.NewMessage("reward", "updated", reward.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	reward, ok := h.rewardFromPath(w, r)
	if !ok {
		return
	}

	if err := h.rewardStore.Delete(reward.ID); err != nil {
		h.logger.Error("delete reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.broadcast(reward.FamilyID, websocket.NewMessage("reward", "deleted", reward.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	ChildID int64 `json:"child_id"`
}

// Redeem spends a child's bucks on a reward. The caller redeems for
// themselves unless child_id names someone else, which only admins may do.
// Balances may go negative; whether to honor an overdrawn redemption is a
// parenting decision, not a software one.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	reward, ok := h.rewardFromPath(w, r)
	if !ok {
		return
	}
	if !reward.Active {
		writeError(w, http.StatusConflict, "reward is not active")
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	childID := auth.MemberID(r.Context())
	if req.ChildID != 0 && req.ChildID != childID {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "cannot redeem for another member")
			return
		}
		childID = req.ChildID
	}

	child, err := h.familyStore.GetMember(childID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check family member")
		return
	}
	if child == nil || child.FamilyID != reward.FamilyID {
		writeError(w, http.StatusBadRequest, "family member not found")
		return
	}

	tx, err := h.ledger.SpendOnReward(reward.FamilyID, childID, reward, h.callerName(r))
	if err != nil {
		h.logger.Error("spend on reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to redeem reward")
		return
	}

	h.broadcast(reward.FamilyID, websocket.NewMessage("reward", "redeemed", reward.ID, map[string]any{
		"child_id":      childID,
		"balance_after": tx.BalanceAfter,
	}))
	writeJSON(w, http.StatusOK, tx)
}

// Refund reverses a redemption, crediting the cost back to the child.
func (h *RewardHandler) Refund(w http.ResponseWriter, r *http.Request) {
	reward, ok := h.rewardFromPath(w, r)
	if !ok {
		return
	}

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	child, err := h.familyStore.GetMember(req.ChildID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check family member")
		return
	}
	if child == nil || child.FamilyID != reward.FamilyID {
		writeError(w, http.StatusBadRequest, "family member not found")
		return
	}

	tx, err := h.ledger.RefundReward(reward.FamilyID, req.ChildID, reward, h.callerName(r))
	if err != nil {
		h.logger.Error("refund reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to refund reward")
		return
	}

	h.broadcast(reward.FamilyID, websocket.NewMessage("reward", "refunded", reward.ID, map[string]any{
		"child_id":      req.ChildID,
		"balance_after": tx.BalanceAfter,
	}))
	writeJSON(w, http.StatusOK, tx)
}

func (h *RewardHandler) callerName(r *http.Request) string {
	member, err := h.familyStore.GetMember(auth.MemberID(r.Context()))
	if err != nil || member == nil {
		return ""
	}
	return member.Name
}

func (h *RewardHandler) rewardFromPath(w http.ResponseWriter, r *http.Request) (*model.Reward, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	reward, err := h.rewardStore.GetByID(id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return nil, false
	}
	if reward == nil || reward.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "reward not found")
		return nil, false
	}
	return reward, true
}
