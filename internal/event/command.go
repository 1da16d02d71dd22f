package event

import (
	"encoding/json"
	"fmt"

	"Murmur/internal/errs"
)

// Command is the closed set of inbound client commands. Decoding produces one
// concrete variant so the hub can switch exhaustively instead of dispatching
// on raw event strings.
type Command interface {
	isCommand()
}

// JoinConversation subscribes the connection to a conversation's typing and
// delivery streams.
type JoinConversation struct {
	ConversationID string `json:"conversationId"`
}

// SendMessage asks the router to persist and deliver a message. TempID is the
// client-generated correlation id, echoed back in message:sent/message:error
// and never persisted as identity.
type SendMessage struct {
	To             string `json:"to"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	TempID         string `json:"tempId"`
}

// StartTyping refreshes the sender's typing indicator in a conversation.
type StartTyping struct {
	ConversationID string `json:"conversationId"`
}

// StopTyping clears the sender's typing indicator.
type StopTyping struct {
	ConversationID string `json:"conversationId"`
}

// MarkRead records read receipts for a batch of messages.
type MarkRead struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

func (JoinConversation) isCommand() {}
func (SendMessage) isCommand()      {}
func (StartTyping) isCommand()      {}
func (StopTyping) isCommand()       {}
func (MarkRead) isCommand()         {}

// DecodeCommand maps a wire envelope to a typed command. Unknown event names
// and malformed payloads return errs.ErrValidation.
func DecodeCommand(ev WsEvent) (Command, error) {
	switch ev.Event {
	case EventConversationJoin:
		var cmd JoinConversation
		if err := decodePayload(ev.Payload, &cmd); err != nil {
			return nil, err
		}
		if cmd.ConversationID == "" {
			return nil, fmt.Errorf("%w: conversationId is required", errs.ErrValidation)
		}
		return cmd, nil

	case EventMessageSend:
		// Field validation happens in the router, which can answer with a
		// message:error carrying the tempId. Decoding only checks shape.
		var cmd SendMessage
		if err := decodePayload(ev.Payload, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil

	case EventTypingStart:
		var cmd StartTyping
		if err := decodePayload(ev.Payload, &cmd); err != nil {
			return nil, err
		}
		if cmd.ConversationID == "" {
			return nil, fmt.Errorf("%w: conversationId is required", errs.ErrValidation)
		}
		return cmd, nil

	case EventTypingStop:
		var cmd StopTyping
		if err := decodePayload(ev.Payload, &cmd); err != nil {
			return nil, err
		}
		if cmd.ConversationID == "" {
			return nil, fmt.Errorf("%w: conversationId is required", errs.ErrValidation)
		}
		return cmd, nil

	case EventMessageRead:
		var cmd MarkRead
		if err := decodePayload(ev.Payload, &cmd); err != nil {
			return nil, err
		}
		if cmd.ConversationID == "" || len(cmd.MessageIDs) == 0 {
			return nil, fmt.Errorf("%w: conversationId and messageIds are required", errs.ErrValidation)
		}
		return cmd, nil

	default:
		return nil, fmt.Errorf("%w: unknown event %q", errs.ErrValidation, ev.Event)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", errs.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}
	return nil
}
