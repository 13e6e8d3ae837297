package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vbonduro/plantdoc/internal/service"
	"github.com/vbonduro/plantdoc/internal/session"
)

const maxMessageSize = 64 << 10

func (s *Server) slot(r *http.Request) *session.Slot {
	return s.registry.Slot(clientIDFromContext(r.Context()))
}

// writeTurn renders a turn result. Turn failures are part of the
// conversation and are returned with 200; only ErrBusy is an HTTP error.
func (s *Server) writeTurn(w http.ResponseWriter, turn *service.Turn, err error) {
	if errors.Is(err, service.ErrBusy) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process request")
		return
	}
	writeJSON(w, http.StatusOK, newTurnView(turn))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	turn, err := s.service.SendMessage(r.Context(), s.slot(r), req.Text)
	s.writeTurn(w, turn, err)
}

func (s *Server) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	turn, err := s.service.NewConversation(r.Context(), s.slot(r))
	s.writeTurn(w, turn, err)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSessionView(s.service.Snapshot(s.slot(r))))
}
