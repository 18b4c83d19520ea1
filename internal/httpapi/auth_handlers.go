package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rollcall.org/internal/audit"
	"rollcall.org/internal/auth"
	"rollcall.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyMemberRequest struct {
	MemberID string `json:"member_id"`
}

type setPasswordRequest struct {
	AccountID string `json:"account_id"`
	Password  string `json:"password"`
}

type accountPayload struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Role      string     `json:"role"`
	MemberID  string     `json:"member_id"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type sessionResponse struct {
	Token              string          `json:"token,omitempty"`
	ExpiresAt          *time.Time      `json:"expires_at,omitempty"`
	NeedsPasswordSetup bool            `json:"needs_password_setup,omitempty"`
	User               *accountPayload `json:"user,omitempty"`
}

func toAccountPayload(a *auth.Account) *accountPayload {
	if a == nil {
		return nil
	}
	return &accountPayload{
		ID:        a.ID,
		Username:  a.Username,
		Role:      string(a.Role),
		MemberID:  a.MemberID,
		LastLogin: a.LastLoginAt,
	}
}

func toSessionResponse(s *auth.Session) sessionResponse {
	resp := sessionResponse{
		Token:              s.Token,
		NeedsPasswordSetup: s.NeedsPasswordSetup,
		User:               toAccountPayload(s.Account),
	}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		writeError(w, r, http.StatusBadRequest, "username is required")
		return
	}

	session, err := a.identity.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.handleIdentityError(w, r, err, "login")
		return
	}

	if session.NeedsPasswordSetup {
		obs.CountLogin("needs_setup")
		_ = audit.LogEvent(r.Context(), "auth.login.needs_setup", map[string]any{
			"account_id": session.Account.ID,
		})
		writeJSON(w, http.StatusOK, toSessionResponse(session))
		return
	}

	obs.CountLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"account_id": session.Account.ID,
		"username":   session.Account.Username,
	})
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (a *API) handleVerifyMember(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.MemberID) == "" {
		writeError(w, r, http.StatusBadRequest, "member_id is required")
		return
	}

	status, err := a.identity.VerifyMember(r.Context(), req.MemberID)
	if err != nil {
		a.handleIdentityError(w, r, err, "verify")
		return
	}
	if !status.HasAccount {
		obs.CountAccountProvisioned()
		_ = audit.LogEvent(r.Context(), "auth.account.provisioned", map[string]any{
			"account_id": status.AccountID,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"has_account":          status.HasAccount,
		"needs_password_setup": status.NeedsPasswordSetup,
	})
}

func (a *API) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req setPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.AccountID) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "account_id and password are required")
		return
	}

	session, err := a.identity.SetPassword(r.Context(), req.AccountID, req.Password)
	if err != nil {
		a.handleIdentityError(w, r, err, "set_password")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.password.set", map[string]any{
		"account_id": session.Account.ID,
	})
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token, ok := auth.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err := a.identity.Logout(r.Context(), token); err != nil {
		a.handleIdentityError(w, r, err, "logout")
		return
	}
	obs.CountTokenRevoked()
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	account, err := a.identity.Profile(r.Context(), claims.Subject)
	if err != nil {
		a.handleIdentityError(w, r, err, "profile")
		return
	}
	writeJSON(w, http.StatusOK, toAccountPayload(account))
}

// handleAccount serves /v1/accounts/{id}: the owner, staff or an admin may
// read an account's public fields.
func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if username, found := strings.CutPrefix(rest, "by-username/"); found {
		// Staff-only lookup by login name; members only ever address
		// accounts by id, and only their own.
		if username == "" || strings.Contains(username, "/") {
			writeError(w, r, http.StatusNotFound, "not found")
			return
		}
		if err := a.guard.RequireRole(claims, auth.RoleStaff, auth.RoleAdmin); err != nil {
			a.handleIdentityError(w, r, err, "account")
			return
		}
		account, err := a.identity.ProfileByUsername(r.Context(), username)
		if err != nil {
			a.handleIdentityError(w, r, err, "account")
			return
		}
		writeJSON(w, http.StatusOK, toAccountPayload(account))
		return
	}

	accountID := rest
	if accountID == "" || strings.Contains(accountID, "/") {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if err := a.guard.RequireOwnerOrRole(claims, accountID, auth.RoleStaff, auth.RoleAdmin); err != nil {
		a.handleIdentityError(w, r, err, "account")
		return
	}
	account, err := a.identity.Profile(r.Context(), accountID)
	if err != nil {
		a.handleIdentityError(w, r, err, "account")
		return
	}
	writeJSON(w, http.StatusOK, toAccountPayload(account))
}

// handleIdentityError maps identity errors onto HTTP responses. Credential
// failures collapse to one generic message; infrastructure failures stay a
// distinct 500 and are never reported as bad credentials.
func (a *API) handleIdentityError(w http.ResponseWriter, r *http.Request, err error, op string) {
	switch {
	case errors.Is(err, auth.ErrMemberNotFound):
		if op == "login" {
			obs.CountLogin("unknown_member")
		}
		writeError(w, r, http.StatusUnauthorized, "member not found")
	case errors.Is(err, auth.ErrInvalidCredential):
		if op == "login" {
			obs.CountLogin("denied")
		}
		_ = audit.LogEvent(r.Context(), "auth.login.denied", map[string]any{"op": op})
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrPasswordAlreadySet):
		writeError(w, r, http.StatusConflict, "password already set")
	case errors.Is(err, auth.ErrMalformedToken),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrExpired),
		errors.Is(err, auth.ErrRevoked),
		errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	default:
		if op == "login" {
			obs.CountLogin("error")
		}
		obs.LogEvent(map[string]any{
			"level": "error",
			"msg":   "identity operation failed",
			"op":    op,
			"error": err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
