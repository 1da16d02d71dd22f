package hub

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"Murmur/internal/event"
)

func typingFrame(name, conversationID string) event.WsEvent {
	return event.WsEvent{
		Event:   name,
		Payload: json.RawMessage(fmt.Sprintf(`{"conversationId":%q}`, conversationID)),
	}
}

// A stop right after a start must always land after it: both run on the
// connection's read goroutine, so no interleaving can leave the indicator
// live until the TTL expires.
func TestHub_TypingStopNeverOvertakesStart(t *testing.T) {
	gw := newFakeGateway()
	alice := primitive.NewObjectID().Hex()
	bob := primitive.NewObjectID().Hex()
	convID := primitive.NewObjectID().Hex()
	gw.participants[convID] = []string{alice, bob}

	h := NewHub(gw, nil, time.Minute, zap.NewNop())
	t.Cleanup(h.Stop)

	c := bareClient()
	c.userID = alice

	for i := 0; i < 100; i++ {
		h.dispatch(c, typingFrame(event.EventTypingStart, convID))
		h.dispatch(c, typingFrame(event.EventTypingStop, convID))
		assert.Equal(t, 0, h.typing.ActiveCount(), "every stop must clear the start before it")
	}
}
