package api

import (
	"net/http"
)

// handleBridgeStatus returns the event bridge status snapshot.
func (s *Server) handleBridgeStatus(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "event bridge disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

// handleBridgeReconnect starts a connection attempt without waiting for the
// retry timer. The attempt runs in the background; the response carries the
// status at the time of the call.
func (s *Server) handleBridgeReconnect(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "event bridge disabled")
		return
	}
	if err := s.bridge.Reconnect(r.Context()); err != nil {
		s.logger.Warn("bridge reconnect rejected", "error", err)
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, s.bridge.Status())
}

// handleBridgeDisconnect closes the bridge connection. Repeating it is harmless.
func (s *Server) handleBridgeDisconnect(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		writeUnavailable(w, "event bridge disabled")
		return
	}
	s.bridge.Disconnect()
	writeJSON(w, http.StatusOK, s.bridge.Status())
}
