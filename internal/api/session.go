package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/nmos-dashboard/internal/registry"
)

// loginRequest is the request body for POST /session/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleGetSession reports who the dashboard is logged in to the registry as.
func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request) {
	if s.sessions == nil {
		writeUnavailable(w, "session store not configured")
		return
	}
	user, ok := s.sessions.User()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}

// handleLogin logs in to the registry and stores the session. The token is
// never returned to the browser.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeUnavailable(w, "session store not configured")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "username and password are required")
		return
	}

	user, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var apiErr *registry.APIError
		switch {
		case registry.IsUnauthorized(err):
			writeUnauthorized(w, apiErrorMessage(err, "invalid credentials"))
		case errors.As(err, &apiErr):
			writeBadGateway(w, apiErr.Message)
		case errors.Is(err, registry.ErrCircuitOpen):
			writeUnavailable(w, "registry unavailable")
		default:
			s.logger.Error("registry login failed", "error", err)
			writeBadGateway(w, "registry login failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}

// handleLogout clears the stored session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeUnavailable(w, "session store not configured")
		return
	}
	if err := s.sessions.Logout(r.Context()); err != nil {
		s.logger.Error("logout failed", "error", err)
		writeInternalError(w, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func apiErrorMessage(err error, fallback string) string {
	var apiErr *registry.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
