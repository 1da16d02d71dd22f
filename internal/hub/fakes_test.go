package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"Murmur/internal/errs"
	"Murmur/internal/event"
	"Murmur/internal/model"
)

// fakeGateway is an in-memory Gateway for exercising the router and receipt
// tracker without MongoDB.
type fakeGateway struct {
	mu sync.Mutex

	participants map[string][]string // conversationID -> participant user ids
	createErr    error
	markErr      error

	created     []model.Message
	newlyMarked map[string][]string // conversationID -> ids to report as newly marked
	markCalls   int
	lastSeen    map[string]time.Time
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		participants: make(map[string][]string),
		newlyMarked:  make(map[string][]string),
		lastSeen:     make(map[string]time.Time),
	}
}

func (g *fakeGateway) CreateMessage(_ context.Context, conversationID, senderID, text string) (model.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return model.Message{}, g.createErr
	}
	convID, _ := primitive.ObjectIDFromHex(conversationID)
	sender, _ := primitive.ObjectIDFromHex(senderID)
	msg := model.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: convID,
		SenderID:       sender,
		Body:           text,
		Status:         model.StatusSent,
		CreatedAt:      time.Now(),
	}
	g.created = append(g.created, msg)
	return msg, nil
}

func (g *fakeGateway) ConversationParticipants(_ context.Context, conversationID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.participants[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", errs.ErrNotFound, conversationID)
	}
	return p, nil
}

func (g *fakeGateway) UpdateConversationLastMessage(context.Context, model.Message) error {
	return nil
}

func (g *fakeGateway) MarkMessageDelivered(_ context.Context, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range g.created {
		if g.created[i].ID.Hex() == messageID && g.created[i].Status == model.StatusSent {
			g.created[i].Status = model.StatusDelivered
		}
	}
	return nil
}

func (g *fakeGateway) MarkMessagesRead(_ context.Context, conversationID, _ string, _ []string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markCalls++
	if g.markErr != nil {
		return nil, g.markErr
	}
	return g.newlyMarked[conversationID], nil
}

func (g *fakeGateway) TouchLastSeen(_ context.Context, userID string, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSeen[userID] = at
	return nil
}

func (g *fakeGateway) createdMessages() []model.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Message(nil), g.created...)
}

// fakeDelivery records every pushed frame per connection id.
type fakeDelivery struct {
	mu     sync.Mutex
	frames map[string][]event.WsEvent
}

func newFakeDelivery() *fakeDelivery {
	return &fakeDelivery{frames: make(map[string][]event.WsEvent)}
}

func (d *fakeDelivery) Push(connID string, ev event.WsEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames[connID] = append(d.frames[connID], ev)
	return true
}

func (d *fakeDelivery) framesFor(connID string) []event.WsEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]event.WsEvent(nil), d.frames[connID]...)
}

func (d *fakeDelivery) count(connID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames[connID])
}
