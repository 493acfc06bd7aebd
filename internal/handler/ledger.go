package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chorebank/internal/auth"
	"chorebank/internal/ledger"
	"chorebank/internal/model"
	"chorebank/internal/store"
	"chorebank/internal/websocket"
)

type LedgerHandler struct {
	ledger        *ledger.Service
	familyStore   *store.FamilyStore
	instanceStore *store.InstanceStore
	hub           *websocket.Hub
	logger        *slog.Logger
}

func NewLedgerHandler(ls *ledger.Service, fs *store.FamilyStore, is *store.InstanceStore, hub *websocket.Hub, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: ls, familyStore: fs, instanceStore: is, hub: hub, logger: logger}
}

func (h *LedgerHandler) broadcast(familyID int64, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(familyID, msg)
	}
}

// Balance returns one member's bucks balance. A member with no ledger
// activity has a zero balance, not a missing one.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	member, ok := h.memberFromPath(w, r)
	if !ok {
		return
	}

	balance, err := h.ledger.Balance(member.FamilyID, member.ID)
	if err != nil {
		h.logger.Error("get balance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

// Balances returns every balance in the family, richest first.
func (h *LedgerHandler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.ledger.Balances(auth.FamilyID(r.Context()))
	if err != nil {
		h.logger.Error("list balances", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list balances")
		return
	}
	if balances == nil {
		balances = []model.Balance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	member, ok := h.memberFromPath(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	transactions, err := h.ledger.History(member.FamilyID, member.ID, limit)
	if err != nil {
		h.logger.Error("list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if transactions == nil {
		transactions = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

// Stats returns a member's balance with an earned/spent breakdown over
// the last ?days= (default 30).
func (h *LedgerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	member, ok := h.memberFromPath(w, r)
	if !ok {
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := h.ledger.Stats(member.FamilyID, member.ID, since)
	if err != nil {
		h.logger.Error("balance stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type adjustRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

// Adjust applies a manual admin correction, positive or negative.
func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	member, ok := h.memberFromPath(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount must be non-zero")
		return
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "reason is required")
		return
	}

	tx, err := h.ledger.AdjustBalance(member.FamilyID, member.ID, req.Amount, req.Reason, h.callerName(r))
	if err != nil {
		h.logger.Error("adjust balance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to adjust balance")
		return
	}

	h.broadcast(member.FamilyID, websocket.NewMessage("balance", "adjusted", member.ID, map[string]any{
		"balance_after": tx.BalanceAfter,
	}))
	writeJSON(w, http.StatusOK, tx)
}

type tipRequest struct {
	Amount int `json:"amount"`
}

// Tip awards bonus bucks on top of an instance's normal reward, e.g. for
// a chore done exceptionally well.
func (h *LedgerHandler) Tip(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	in, err := h.instanceStore.GetByID(id)
	if err != nil {
		h.logger.Error("get instance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get instance")
		return
	}
	if in == nil || in.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "instance not found")
		return
	}

	var req tipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Amount < 1 {
		writeError(w, http.StatusBadRequest, "amount must be >= 1")
		return
	}

	tx, err := h.ledger.TipChore(in.FamilyID, in.ChildID, req.Amount, in.ID, h.callerName(r))
	if err != nil {
		h.logger.Error("tip chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to tip")
		return
	}

	h.broadcast(in.FamilyID, websocket.NewMessage("instance", "tipped", in.ID, map[string]any{
		"child_id":      in.ChildID,
		"amount":        req.Amount,
		"balance_after": tx.BalanceAfter,
	}))
	writeJSON(w, http.StatusOK, tx)
}

func (h *LedgerHandler) callerName(r *http.Request) string {
	member, err := h.familyStore.GetMember(auth.MemberID(r.Context()))
	if err != nil || member == nil {
		return ""
	}
	return member.Name
}

func (h *LedgerHandler) memberFromPath(w http.ResponseWriter, r *http.Request) (*model.FamilyMember, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	member, err := h.familyStore.GetMember(id)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get family member")
		return nil, false
	}
	if member == nil || member.FamilyID != auth.FamilyID(r.Context()) {
		writeError(w, http.StatusNotFound, "family member not found")
		return nil, false
	}
	return member, true
}
