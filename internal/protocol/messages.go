package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the chat channel.
type MessageType string

const (
	TypeClientMessage    MessageType = "client_message"
	TypeAssistantMessage MessageType = "assistant_message"
	TypeSystemEvent      MessageType = "system_event"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientMessage is one user chat turn sent by the client.
type ClientMessage struct {
	Type      MessageType `json:"type"`
	UserID    string      `json:"user_id"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

// AssistantMessage is the agent's reply to a client turn.
type AssistantMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

// SystemEvent announces session lifecycle changes to the client.
type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Event     string      `json:"event"`
	Detail    string      `json:"detail,omitempty"`
}

// ErrorEvent reports a recoverable error without closing the socket.
type ErrorEvent struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// Decode sniffs the envelope and unmarshals the concrete message.
func Decode(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeClientMessage:
		var m ClientMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode client_message: %w", err)
		}
		return m, nil
	case TypeAssistantMessage:
		var m AssistantMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode assistant_message: %w", err)
		}
		return m, nil
	case TypeSystemEvent:
		var m SystemEvent
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode system_event: %w", err)
		}
		return m, nil
	case TypeErrorEvent:
		var m ErrorEvent
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode error_event: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}
