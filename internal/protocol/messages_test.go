package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageChat(t *testing.T) {
	raw := []byte(`{"type":"chat_message","session_id":" s1 ","message":"what is abha"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if msg.SessionID != "s1" || msg.Message != "what is abha" {
		t.Fatalf("unexpected chat message: %+v", msg)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageRejectsEmpty(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"chat_message","message":""}`))
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("error = %v, want ErrEmptyMessage", err)
	}

	msg, err := ParseClientMessage([]byte(`{"type":"chat_message","message":"   "}`))
	if err != nil || msg.Message != "   " {
		t.Fatalf("ParseClientMessage(whitespace) = %+v, %v", msg, err)
	}
}

func TestParseClientMessageInvalidJSON(t *testing.T) {
	if _, err := ParseClientMessage([]byte(`{`)); err == nil {
		t.Fatalf("ParseClientMessage() error = nil, want error")
	}
}

func TestTurnEndShape(t *testing.T) {
	raw, err := json.Marshal(AssistantTurnEnd{Type: TypeAssistantTurnEnd, SessionID: "s1", TurnID: "t1", Response: "hi", Source: "faq", Timestamp: "2026-10-16T09:00:00Z"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"type", "session_id", "turn_id", "response", "source", "timestamp"} {
		if _, ok := got[key]; !ok {
			t.Fatalf("missing key %q in %s", key, raw)
		}
	}
}
