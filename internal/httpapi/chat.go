package httpapi

import (
	"errors"
	"net/http"

	"github.com/sahaleey/abhachat/internal/chat"
	"github.com/sahaleey/abhachat/internal/llm"
)

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id,omitempty"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_request", "request body must be a JSON object with a message field")
		return
	}
	if req.Message == nil {
		respondError(w, http.StatusUnprocessableEntity, "invalid_request", "message: field required")
		return
	}

	reply, err := s.chat.Reply(r.Context(), req.SessionID, *req.Message, nil)
	if err != nil {
		status, code, detail := s.mapChatError(err)
		respondError(w, status, code, detail)
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		Timestamp: timestamp(reply.Timestamp),
	})
}

// mapChatError translates a pipeline failure into the client-facing outcome.
func (s *Server) mapChatError(err error) (status int, code, detail string) {
	if errors.Is(err, chat.ErrInvalidInput) {
		return http.StatusUnprocessableEntity, "invalid_request", err.Error()
	}
	switch llm.Classify(err) {
	case llm.KindRateLimited:
		return http.StatusTooManyRequests, "upstream_rate_limited", msgUpstreamRateLimited
	default:
		return http.StatusInternalServerError, "internal_error", msgInternalError
	}
}
