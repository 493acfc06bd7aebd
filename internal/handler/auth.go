package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"chorebank/internal/auth"
	"chorebank/internal/middleware"
	"chorebank/internal/model"
	"chorebank/internal/store"
)

const sessionTTL = 30 * 24 * time.Hour

type AuthHandler struct {
	familyStore *store.FamilyStore
	logger      *slog.Logger
}

func NewAuthHandler(fs *store.FamilyStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{familyStore: fs, logger: logger}
}

type registerRequest struct {
	FamilyName string `json:"family_name"`
	AdminName  string `json:"admin_name"`
	PIN        string `json:"pin"`
}

// Register bootstraps a new family with its first admin and signs them in.
// The admin PIN is required up front so approvals are gated from day one.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.FamilyName = strings.TrimSpace(req.FamilyName)
	req.AdminName = strings.TrimSpace(req.AdminName)
	if req.FamilyName == "" || req.AdminName == "" {
		writeError(w, http.StatusBadRequest, "family_name and admin_name are required")
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeError(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	family, err := h.familyStore.CreateFamily(req.FamilyName)
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create family")
		return
	}

	admin, err := h.familyStore.CreateMember(family.ID, req.AdminName, model.RoleAdmin, "", "")
	if err != nil {
		h.logger.Error("create admin member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to hash PIN")
		return
	}
	if err := h.familyStore.SetPIN(admin.ID, string(hash)); err != nil {
		h.logger.Error("set admin pin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set PIN")
		return
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(sessionTTL)
	if _, err := h.familyStore.CreateSession(token, admin.ID, family.ID, expiresAt); err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"family": family,
		"admin":  admin,
	})
}

// loginMember is the subset of member fields shown on the sign-in picker.
type loginMember struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	AvatarEmoji string `json:"avatar_emoji"`
	HasPIN      bool   `json:"has_pin"`
}

// LoginMembers lists a family's members for the sign-in picker on a shared
// household device. It is public by design, so it exposes nothing beyond
// what the picker needs.
func (h *AuthHandler) LoginMembers(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	members, err := h.familyStore.ListMembers(familyID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	out := make([]loginMember, 0, len(members))
	for _, m := range members {
		out = append(out, loginMember{
			ID:          m.ID,
			Name:        m.Name,
			Color:       m.Color,
			AvatarEmoji: m.AvatarEmoji,
			HasPIN:      m.HasPIN,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type loginRequest struct {
	MemberID int64  `json:"member_id"`
	PIN      string `json:"pin"`
}

// Login signs a family member in with their PIN and sets a session cookie.
// Members without a PIN (typically young children on a shared household
// device) sign in with an empty PIN.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	member, err := h.familyStore.GetMember(req.MemberID)
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up member")
		return
	}
	if member == nil {
		writeError(w, http.StatusUnauthorized, "unknown member or incorrect PIN")
		return
	}

	hash, err := h.familyStore.GetPINHash(member.ID)
	if err != nil {
		h.logger.Error("get pin hash", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up member")
		return
	}
	if hash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
			writeError(w, http.StatusUnauthorized, "unknown member or incorrect PIN")
			return
		}
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(sessionTTL)
	if _, err := h.familyStore.CreateSession(token, member.ID, member.FamilyID, expiresAt); err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, member)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.familyStore.DeleteSession(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated member.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	member, err := h.familyStore.GetMember(auth.MemberID(r.Context()))
	if err != nil || member == nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	writeJSON(w, http.StatusOK, member)
}
