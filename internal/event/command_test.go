package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Murmur/internal/errs"
)

func frame(name, payload string) WsEvent {
	return WsEvent{Event: name, Payload: json.RawMessage(payload)}
}

func TestDecodeCommand_Join(t *testing.T) {
	cmd, err := DecodeCommand(frame(EventConversationJoin, `{"conversationId":"c1"}`))
	require.NoError(t, err)
	join, ok := cmd.(JoinConversation)
	require.True(t, ok)
	assert.Equal(t, "c1", join.ConversationID)

	_, err = DecodeCommand(frame(EventConversationJoin, `{}`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDecodeCommand_Send(t *testing.T) {
	cmd, err := DecodeCommand(frame(EventMessageSend,
		`{"to":"u2","conversationId":"c1","text":"hi","tempId":"tmp-1"}`))
	require.NoError(t, err)
	send, ok := cmd.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "u2", send.To)
	assert.Equal(t, "c1", send.ConversationID)
	assert.Equal(t, "hi", send.Text)
	assert.Equal(t, "tmp-1", send.TempID)
}

func TestDecodeCommand_SendShapeOnly(t *testing.T) {
	// Field validation lives in the router so failures can answer with the
	// tempId; decoding must accept an empty text.
	cmd, err := DecodeCommand(frame(EventMessageSend, `{"tempId":"tmp-2"}`))
	require.NoError(t, err)
	send, ok := cmd.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "tmp-2", send.TempID)
	assert.Empty(t, send.Text)
}

func TestDecodeCommand_Typing(t *testing.T) {
	cmd, err := DecodeCommand(frame(EventTypingStart, `{"conversationId":"c1"}`))
	require.NoError(t, err)
	_, ok := cmd.(StartTyping)
	assert.True(t, ok)

	cmd, err = DecodeCommand(frame(EventTypingStop, `{"conversationId":"c1"}`))
	require.NoError(t, err)
	_, ok = cmd.(StopTyping)
	assert.True(t, ok)

	_, err = DecodeCommand(frame(EventTypingStart, `{}`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDecodeCommand_MarkRead(t *testing.T) {
	cmd, err := DecodeCommand(frame(EventMessageRead,
		`{"conversationId":"c1","messageIds":["m1","m2"]}`))
	require.NoError(t, err)
	read, ok := cmd.(MarkRead)
	require.True(t, ok)
	assert.Equal(t, []string{"m1", "m2"}, read.MessageIDs)

	_, err = DecodeCommand(frame(EventMessageRead, `{"conversationId":"c1","messageIds":[]}`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDecodeCommand_UnknownEvent(t *testing.T) {
	_, err := DecodeCommand(frame("message:recall", `{}`))
	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestDecodeCommand_MalformedPayload(t *testing.T) {
	_, err := DecodeCommand(frame(EventMessageSend, `{"to":`))
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = DecodeCommand(WsEvent{Event: EventMessageSend})
	assert.ErrorIs(t, err, errs.ErrValidation)
}
