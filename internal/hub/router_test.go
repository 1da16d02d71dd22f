package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"Murmur/internal/event"
	"Murmur/internal/model"
)

type routerFixture struct {
	gateway  *fakeGateway
	presence *Registry
	delivery *fakeDelivery
	router   *MessageRouter

	senderID    string
	recipientID string
	convID      string
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		gateway:     newFakeGateway(),
		presence:    NewRegistry(),
		delivery:    newFakeDelivery(),
		senderID:    primitive.NewObjectID().Hex(),
		recipientID: primitive.NewObjectID().Hex(),
		convID:      primitive.NewObjectID().Hex(),
	}
	f.gateway.participants[f.convID] = []string{f.senderID, f.recipientID}
	f.router = NewMessageRouter(f.gateway, f.presence, f.delivery, zap.NewNop())
	t.Cleanup(f.router.Stop)
	return f
}

func (f *routerFixture) job(text, tempID string) sendJob {
	return sendJob{
		originConnID:   "origin-conn",
		senderID:       f.senderID,
		recipientID:    f.recipientID,
		conversationID: f.convID,
		text:           text,
		tempID:         tempID,
	}
}

func decodeEvent[T any](t *testing.T, ev event.WsEvent) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(ev.Payload, &out))
	return out
}

func TestMessageRouter_DeliversToOnlineRecipient(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.senderID, "origin-conn")
	f.presence.Register(f.recipientID, "recipient-conn")

	f.router.Send(f.job("hello", "tmp-1"))

	require.Eventually(t, func() bool { return f.delivery.count("recipient-conn") == 1 },
		time.Second, 5*time.Millisecond)

	frames := f.delivery.framesFor("recipient-conn")
	assert.Equal(t, event.EventMessageNew, frames[0].Event)

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	sent := f.delivery.framesFor("origin-conn")[0]
	require.Equal(t, event.EventMessageSent, sent.Event)
	payload := decodeEvent[event.MessageSentPayload](t, sent)
	assert.Equal(t, "tmp-1", payload.TempID, "confirmation must echo the client correlation id")
	assert.Equal(t, "hello", payload.Message.Body)
	assert.False(t, payload.Message.ID.IsZero(), "confirmation must carry the persisted id")
}

func TestMessageRouter_MarksDeliveredOnlyWhenRecipientReached(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.senderID, "origin-conn")
	f.presence.Register(f.recipientID, "recipient-conn")

	f.router.Send(f.job("reaches you", "tmp-d1"))

	require.Eventually(t, func() bool {
		created := f.gateway.createdMessages()
		return len(created) == 1 && created[0].Status == model.StatusDelivered
	}, time.Second, 5*time.Millisecond, "a message pushed to a live recipient connection must become delivered")
}

func TestMessageRouter_OfflineRecipientStaysSent(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.senderID, "origin-conn")

	f.router.Send(f.job("into the void", "tmp-d2"))

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)

	created := f.gateway.createdMessages()
	require.Len(t, created, 1)
	assert.Equal(t, model.StatusSent, created[0].Status, "no live recipient connection, no delivered transition")
}

func TestMessageRouter_OfflineRecipientStillPersists(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.senderID, "origin-conn")
	// Recipient has no live connections.

	f.router.Send(f.job("are you there?", "tmp-2"))

	require.Eventually(t, func() bool { return len(f.gateway.createdMessages()) == 1 },
		time.Second, 5*time.Millisecond, "message must persist regardless of recipient presence")

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	sent := f.delivery.framesFor("origin-conn")[0]
	assert.Equal(t, event.EventMessageSent, sent.Event, "sender still gets the confirmation")
}

func TestMessageRouter_SenderOtherDevicesGetCopy(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.senderID, "origin-conn")
	f.presence.Register(f.senderID, "sender-tablet")
	f.presence.Register(f.recipientID, "recipient-conn")

	f.router.Send(f.job("multi device", "tmp-3"))

	require.Eventually(t, func() bool { return f.delivery.count("sender-tablet") == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, event.EventMessageNew, f.delivery.framesFor("sender-tablet")[0].Event)

	// The originating connection gets message:sent only, never a duplicate copy.
	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, event.EventMessageSent, f.delivery.framesFor("origin-conn")[0].Event)
}

func TestMessageRouter_PersistFailureReportsError(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.senderID, "origin-conn")
	f.presence.Register(f.recipientID, "recipient-conn")
	f.gateway.createErr = errors.New("mongo is down")

	f.router.Send(f.job("doomed", "tmp-4"))

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	frame := f.delivery.framesFor("origin-conn")[0]
	require.Equal(t, event.EventMessageError, frame.Event)
	payload := decodeEvent[event.MessageErrorPayload](t, frame)
	assert.Equal(t, "tmp-4", payload.TempID)

	assert.Equal(t, 0, f.delivery.count("recipient-conn"), "nothing may be delivered before persistence")
}

func TestMessageRouter_EmptyTextRejected(t *testing.T) {
	f := newRouterFixture(t)

	f.router.Send(f.job("", "tmp-5"))

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	frame := f.delivery.framesFor("origin-conn")[0]
	require.Equal(t, event.EventMessageError, frame.Event)
	payload := decodeEvent[event.MessageErrorPayload](t, frame)
	assert.Equal(t, "tmp-5", payload.TempID)
	assert.Empty(t, f.gateway.createdMessages())
}

func TestMessageRouter_NonParticipantRejected(t *testing.T) {
	f := newRouterFixture(t)
	outsider := primitive.NewObjectID().Hex()
	f.gateway.participants[f.convID] = []string{f.recipientID, outsider}

	f.router.Send(f.job("should not land", "tmp-6"))

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	frame := f.delivery.framesFor("origin-conn")[0]
	assert.Equal(t, event.EventMessageError, frame.Event)
	assert.Empty(t, f.gateway.createdMessages())
}

func TestMessageRouter_UnknownConversationRejected(t *testing.T) {
	f := newRouterFixture(t)
	job := f.job("lost", "tmp-7")
	job.conversationID = primitive.NewObjectID().Hex()

	f.router.Send(job)

	require.Eventually(t, func() bool { return f.delivery.count("origin-conn") == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, event.EventMessageError, f.delivery.framesFor("origin-conn")[0].Event)
}

func TestMessageRouter_PreservesSendOrder(t *testing.T) {
	f := newRouterFixture(t)
	f.presence.Register(f.recipientID, "recipient-conn")

	const n = 20
	for i := 0; i < n; i++ {
		f.router.Send(f.job(fmt.Sprintf("msg-%02d", i), fmt.Sprintf("tmp-%02d", i)))
	}

	require.Eventually(t, func() bool { return len(f.gateway.createdMessages()) == n },
		time.Second, 5*time.Millisecond)

	created := f.gateway.createdMessages()
	for i, msg := range created {
		assert.Equal(t, fmt.Sprintf("msg-%02d", i), msg.Body, "persisted order must match send order")
	}

	frames := f.delivery.framesFor("recipient-conn")
	require.Len(t, frames, n)
	for i, frame := range frames {
		payload := decodeEvent[struct {
			Body string `json:"body"`
		}](t, frame)
		assert.Equal(t, fmt.Sprintf("msg-%02d", i), payload.Body, "delivery order must match persisted order")
	}
}

func TestMessageRouter_OneWorkerPerConversation(t *testing.T) {
	f := newRouterFixture(t)

	otherConv := primitive.NewObjectID().Hex()
	f.gateway.participants[otherConv] = []string{f.senderID, f.recipientID}

	f.router.Send(f.job("first", "tmp-8"))
	job := f.job("second", "tmp-9")
	job.conversationID = otherConv
	f.router.Send(job)

	assert.Equal(t, 2, f.router.ActiveQueues())

	require.Eventually(t, func() bool { return len(f.gateway.createdMessages()) == 2 },
		time.Second, 5*time.Millisecond)
}
