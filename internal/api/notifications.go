package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/nmos-dashboard/internal/notify"
)

// maxNotificationMessage caps operator-posted messages.
const maxNotificationMessage = 500

// createNotificationRequest is the body of POST /notifications.
type createNotificationRequest struct {
	Type       notify.Kind `json:"type"`
	Message    string      `json:"message"`
	TTLSeconds int         `json:"ttl_seconds,omitempty"`
}

// handleListNotifications returns the visible notifications, oldest first.
func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	list := s.notifications.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"count":         len(list),
	})
}

// handleCreateNotification adds a notification.
func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	switch {
	case !req.Type.Valid():
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "type must be success, error, or warning")
		return
	case req.Message == "":
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "message is required")
		return
	case len(req.Message) > maxNotificationMessage:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "message is too long")
		return
	case req.TTLSeconds < 0:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "ttl_seconds cannot be negative")
		return
	}

	id := s.notifications.AddWithTimeout(req.Type, req.Message, time.Duration(req.TTLSeconds)*time.Second)
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// handleDismissNotification removes a notification. Unknown ids succeed.
func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeBadRequest(w, "notification id must be a positive integer")
		return
	}
	s.notifications.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}
