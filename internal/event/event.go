// Package event defines the WebSocket wire protocol: the envelope, the event
// names, the typed payloads for both directions, and the closed set of inbound
// commands the hub dispatches on.
package event

import (
	"encoding/json"

	"Murmur/internal/model"
)

// Client-to-server event names.
const (
	EventConversationJoin = "conversation:join"
	EventMessageSend      = "message:send"
	EventTypingStart      = "typing:start"
	EventTypingStop       = "typing:stop"
	EventMessageRead      = "message:read"
)

// Server-to-client event names. typing:start/stop and message:read share
// their names with the inbound direction; the payloads differ.
const (
	EventUserOnline   = "user:online"
	EventUserOffline  = "user:offline"
	EventUsersOnline  = "users:online"
	EventMessageNew   = "message:new"
	EventMessageSent  = "message:sent"
	EventMessageError = "message:error"
)

// WsEvent is the wire envelope for every frame in both directions.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// -----------------------------------------------------------------
// Outbound payloads and constructors
// -----------------------------------------------------------------

// PresencePayload carries user:online / user:offline.
type PresencePayload struct {
	UserID string `json:"userId"`
}

// OnlineSnapshotPayload carries the users:online snapshot sent right after a
// connection registers.
type OnlineSnapshotPayload struct {
	UserIDs []string `json:"userIds"`
}

// MessageSentPayload confirms a send to the originating connection. TempID is
// the client correlation id; Message carries the authoritative persisted record.
type MessageSentPayload struct {
	TempID  string        `json:"tempId"`
	Message model.Message `json:"message"`
}

// MessageErrorPayload reports a failed send, tied to the original tempId so
// the client can mark its optimistic record as failed.
type MessageErrorPayload struct {
	TempID string `json:"tempId"`
	Reason string `json:"reason"`
}

// TypingPayload carries typing:start / typing:stop to the other participant.
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// MessageReadPayload is the batched read broadcast.
type MessageReadPayload struct {
	MessageIDs []string `json:"messageIds"`
	ReaderID   string   `json:"readerId"`
}

func envelope(name string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{Event: name, Payload: raw}
}

// UserOnline builds the broadcast for a user's first live connection.
func UserOnline(userID string) WsEvent {
	return envelope(EventUserOnline, PresencePayload{UserID: userID})
}

// UserOffline builds the broadcast for a user's last connection closing.
func UserOffline(userID string) WsEvent {
	return envelope(EventUserOffline, PresencePayload{UserID: userID})
}

// OnlineSnapshot builds the initial presence snapshot for a new connection.
func OnlineSnapshot(userIDs []string) WsEvent {
	if userIDs == nil {
		userIDs = []string{}
	}
	return envelope(EventUsersOnline, OnlineSnapshotPayload{UserIDs: userIDs})
}

// MessageNew builds the delivery frame for recipients and the sender's other
// connections.
func MessageNew(msg model.Message) WsEvent {
	return envelope(EventMessageNew, msg)
}

// MessageSent builds the confirmation frame for the originating connection.
func MessageSent(tempID string, msg model.Message) WsEvent {
	return envelope(EventMessageSent, MessageSentPayload{TempID: tempID, Message: msg})
}

// MessageError builds the failure frame for the originating connection.
func MessageError(tempID, reason string) WsEvent {
	return envelope(EventMessageError, MessageErrorPayload{TempID: tempID, Reason: reason})
}

// TypingStart builds the typing indicator for the other participant.
func TypingStart(userID, conversationID string) WsEvent {
	return envelope(EventTypingStart, TypingPayload{UserID: userID, ConversationID: conversationID})
}

// TypingStop builds the stop indicator, explicit or synthesized on expiry.
func TypingStop(userID, conversationID string) WsEvent {
	return envelope(EventTypingStop, TypingPayload{UserID: userID, ConversationID: conversationID})
}

// MessageRead builds the batched read-receipt broadcast.
func MessageRead(messageIDs []string, readerID string) WsEvent {
	return envelope(EventMessageRead, MessageReadPayload{MessageIDs: messageIDs, ReaderID: readerID})
}
