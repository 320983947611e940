// Package protocol defines the websocket frames of the streaming chat endpoint.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeChatMessage        MessageType = "chat_message"
	TypeAssistantTextDelta MessageType = "assistant_text_delta"
	TypeAssistantTurnEnd   MessageType = "assistant_turn_end"
	TypeErrorEvent         MessageType = "error_event"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrEmptyMessage    = errors.New("message must not be empty")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// ChatMessage is the only client frame. SessionID may be empty.
type ChatMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Message   string      `json:"message"`
}

type AssistantTextDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	TextDelta string      `json:"text_delta"`
}

type AssistantTurnEnd struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    string      `json:"turn_id"`
	Response  string      `json:"response"`
	Source    string      `json:"source"`
	Timestamp string      `json:"timestamp"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	TurnID    string      `json:"turn_id,omitempty"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes one client frame.
func ParseClientMessage(raw []byte) (ChatMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ChatMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeChatMessage:
		var msg ChatMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return ChatMessage{}, err
		}
		if msg.Message == "" {
			return ChatMessage{}, ErrEmptyMessage
		}
		msg.SessionID = strings.TrimSpace(msg.SessionID)
		return msg, nil
	default:
		return ChatMessage{}, ErrUnsupportedType
	}
}
