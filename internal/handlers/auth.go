package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
)

// Auth handlers

// HandleLogin processes login requests
// @Summary Log in
// @Description Authenticates dashboard credentials and issues a bearer token, also set as a cookie
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Token and session details"
// @Failure 400 {string} string "Invalid JSON"
// @Failure 401 {string} string "Invalid credentials"
// @Failure 405 {string} string "Method not allowed"
// @Router /api/auth/login [post]
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.requirePOST(w, r) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	token, session, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		h.logger.Warn("Login rejected",
			logging.Field{Key: "username", Value: req.Username})
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.setTokenCookie(w, token, session.ExpiresAt)
	h.sendJSONResponse(w, map[string]interface{}{
		"token":      token,
		"username":   session.Username,
		"is_default": session.IsDefault,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
}

// HandleLogout processes logout requests
// @Summary Log out
// @Description Revokes the current token and clears the token cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string "Logged out"
// @Router /api/auth/logout [post]
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token, _ := h.extractToken(r); token != "" {
		if err := h.auth.Logout(token); err != nil {
			h.logger.Warn("Logout with invalid token")
		}
	}

	h.clearTokenCookie(w)
	h.sendJSONResponse(w, map[string]string{"status": "ok"})
}

// HandleChangeCredentials replaces the authenticated user's credentials
// @Summary Change credentials
// @Description Replaces the username and password of the authenticated user and revokes the current token. Used to retire the seeded default credentials.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string "Credentials updated"
// @Failure 400 {string} string "Invalid request"
// @Failure 401 {string} string "Unauthorized"
// @Failure 500 {string} string "Failed to change credentials"
// @Router /api/auth/credentials [post]
func (h *Handlers) HandleChangeCredentials(w http.ResponseWriter, r *http.Request) {
	if !h.requirePOST(w, r) {
		return
	}

	userID, err := h.getUserIDFromRequest(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Username        string `json:"username"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}
	if err := h.validatePasswordChange(req.Password, req.ConfirmPassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.auth.ChangeCredentials(userID, req.Username, req.Password); err != nil {
		h.logger.Error("Failed to change credentials", err,
			logging.Field{Key: "user_id", Value: userID})
		http.Error(w, "Failed to change credentials", http.StatusInternalServerError)
		return
	}

	// The old token still names the old identity, revoke it
	if token, _ := h.extractToken(r); token != "" {
		h.auth.Logout(token)
	}
	h.clearTokenCookie(w)

	h.sendJSONResponse(w, map[string]string{
		"status":  "ok",
		"message": "Credentials updated, log in again",
	})
}
