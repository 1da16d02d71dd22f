package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"Murmur/internal/errs"
	"Murmur/internal/model"
)

// Gateway is the persistence facade the hub talks to. It converts the hub's
// string identities to ObjectIDs and fans calls out to the underlying
// repositories. The hub depends on its own interface of this shape so tests
// can substitute a fake store.
type Gateway struct {
	Users         UserRepository
	Conversations ConversationRepository
	Messages      MessageRepository
}

func NewGateway(users UserRepository, conversations ConversationRepository, messages MessageRepository) *Gateway {
	return &Gateway{Users: users, Conversations: conversations, Messages: messages}
}

// CreateMessage persists a new message with status "sent" and returns the
// record with its authoritative id.
func (g *Gateway) CreateMessage(ctx context.Context, conversationID, senderID, text string) (model.Message, error) {
	convID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: bad conversation id", errs.ErrValidation)
	}
	sender, err := primitive.ObjectIDFromHex(senderID)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: bad sender id", errs.ErrValidation)
	}

	msg := model.Message{
		ConversationID: convID,
		SenderID:       sender,
		Body:           text,
		Status:         model.StatusSent,
		ReadBy:         []model.ReadReceipt{},
		CreatedAt:      time.Now(),
	}
	if err := g.Messages.Insert(ctx, &msg); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// ConversationParticipants returns the two participant ids of a conversation.
func (g *Gateway) ConversationParticipants(ctx context.Context, conversationID string) ([]string, error) {
	conv, err := g.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		ids = append(ids, p.Hex())
	}
	return ids, nil
}

// UpdateConversationLastMessage refreshes the conversation preview after a
// successful send.
func (g *Gateway) UpdateConversationLastMessage(ctx context.Context, msg model.Message) error {
	return g.Conversations.SetLastMessage(ctx, msg.ConversationID, model.LastMessage{
		MessageID: msg.ID,
		Body:      msg.Body,
		SenderID:  msg.SenderID,
		SentAt:    msg.CreatedAt,
	})
}

// MarkMessageDelivered raises the message's aggregate status once it reached
// a live connection of the recipient.
func (g *Gateway) MarkMessageDelivered(ctx context.Context, messageID string) error {
	id, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("%w: bad message id", errs.ErrValidation)
	}
	return g.Messages.MarkDelivered(ctx, id)
}

// MarkMessagesRead records receipts idempotently and returns the ids that
// gained a receipt in this call.
func (g *Gateway) MarkMessagesRead(ctx context.Context, conversationID, readerID string, messageIDs []string) ([]string, error) {
	convID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad conversation id", errs.ErrValidation)
	}
	reader, err := primitive.ObjectIDFromHex(readerID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad reader id", errs.ErrValidation)
	}

	ids := make([]primitive.ObjectID, 0, len(messageIDs))
	for _, raw := range messageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad message id %q", errs.ErrValidation, raw)
		}
		ids = append(ids, id)
	}

	marked, err := g.Messages.MarkRead(ctx, convID, reader, ids, time.Now())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(marked))
	for _, id := range marked {
		out = append(out, id.Hex())
	}
	return out, nil
}

// TouchLastSeen records the user's disconnect time.
func (g *Gateway) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	return g.Users.TouchLastSeen(ctx, userID, at)
}
