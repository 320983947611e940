package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sahaleey/abhachat/internal/chat"
	"github.com/sahaleey/abhachat/internal/llm"
	"github.com/sahaleey/abhachat/internal/observability"
	"github.com/sahaleey/abhachat/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 120 * time.Second
)

// handleChatWS streams replies over a websocket. Each chat_message frame runs
// the same pipeline as POST /chat; deltas are sent as they arrive, followed by
// assistant_turn_end or error_event. Frames on one connection are handled in
// order, and each one draws from the caller's per-IP rate limit.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	defaultSession := strings.TrimSpace(r.URL.Query().Get("session_id"))
	ip := clientIP(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connID := uuid.NewString()
	logger := observability.LoggerFrom(ctx, s.logger).With("ws_conn", connID)
	logger.Debug("websocket connected")

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
	})

	send := func(msg any, t protocol.MessageType) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
		}
		return nil
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			if sendErr := send(protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			}, protocol.TypeErrorEvent); sendErr != nil {
				break
			}
			continue
		}
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(msg.Type)).Inc()
		}

		sessionID := s.chat.SessionID(firstNonEmpty(msg.SessionID, defaultSession))
		if s.limiter != nil && !s.limiter.Allow(ip) {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			if err := send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "rate_limited",
				Retryable: true,
				Detail:    s.limiter.message(),
			}, protocol.TypeErrorEvent); err != nil {
				break
			}
			continue
		}
		if err := s.streamTurn(ctx, sessionID, msg.Message, send); err != nil {
			logger.Debug("websocket write failed", "error", err)
			break
		}
	}
	logger.Debug("websocket disconnected")
}

// streamTurn runs one message and reports it to the client. The returned error
// is a write failure; pipeline failures are sent as error_event frames.
func (s *Server) streamTurn(ctx context.Context, sessionID, message string, send func(any, protocol.MessageType) error) error {
	turnID := uuid.NewString()
	var writeErr error
	onDelta := func(delta string) error {
		writeErr = send(protocol.AssistantTextDelta{
			Type:      protocol.TypeAssistantTextDelta,
			SessionID: sessionID,
			TurnID:    turnID,
			TextDelta: delta,
		}, protocol.TypeAssistantTextDelta)
		return writeErr
	}

	reply, err := s.chat.Reply(ctx, sessionID, message, onDelta)
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return send(s.errorEvent(sessionID, turnID, err), protocol.TypeErrorEvent)
	}
	return send(protocol.AssistantTurnEnd{
		Type:      protocol.TypeAssistantTurnEnd,
		SessionID: sessionID,
		TurnID:    turnID,
		Response:  reply.Text,
		Source:    string(reply.Source),
		Timestamp: timestamp(reply.Timestamp),
	}, protocol.TypeAssistantTurnEnd)
}

func (s *Server) errorEvent(sessionID, turnID string, err error) protocol.ErrorEvent {
	ev := protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		TurnID:    turnID,
	}
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		ev.Code, ev.Detail = "invalid_request", err.Error()
	case llm.Classify(err) == llm.KindRateLimited:
		ev.Code, ev.Detail, ev.Retryable = "upstream_rate_limited", msgUpstreamRateLimited, true
	default:
		ev.Code, ev.Detail, ev.Retryable = "internal_error", msgInternalError, true
	}
	return ev
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
