package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sahaleey/abhachat/internal/memory"
)

type turnView struct {
	Role      memory.Role `json:"role"`
	Text      string      `json:"text"`
	Timestamp string      `json:"timestamp"`
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	list := s.chat.Sessions()
	if s.metrics != nil {
		s.metrics.KnownSessions.Set(float64(len(list)))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":    len(list),
		"sessions": list,
	})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	history, err := s.chat.History(r.Context(), id)
	if err != nil {
		s.logger.Error("read session history", "session_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", msgInternalError)
		return
	}
	turns := make([]turnView, 0, len(history))
	for _, t := range history {
		turns = append(turns, turnView{Role: t.Role, Text: t.Text, Timestamp: timestamp(t.At)})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      turns,
	})
}
