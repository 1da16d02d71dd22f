package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"Murmur/internal/db"
	"Murmur/internal/errs"
	"Murmur/internal/model"
)

type ConversationRepository interface {
	FindOrCreatePrivate(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error)
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]model.Conversation, error)
	SetLastMessage(ctx context.Context, conversationID primitive.ObjectID, last model.LastMessage) error
}

type conversationRepository struct {
	store  *db.Store[model.Conversation]
	logger *zap.Logger
}

func NewConversationRepository(store *db.Store[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{store: store, logger: logger}
}

// FindOrCreatePrivate returns the existing two-party conversation between a
// and b, creating it when none exists.
func (r *conversationRepository) FindOrCreatePrivate(ctx context.Context, a, b primitive.ObjectID) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		All("participants", []primitive.ObjectID{a, b}).
		Size("participants", 2).
		Build()

	existing, err := r.store.FindOne(ctx, filter)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	now := time.Now()
	conv := model.Conversation{
		Participants: []primitive.ObjectID{a, b},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := r.store.Insert(ctx, conv)
	if err != nil {
		r.logger.Error("failed to create conversation", zap.Error(err))
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	conv.ID = id

	r.logger.Info("conversation created",
		zap.String("conversation_id", id.Hex()),
		zap.String("participant_a", a.Hex()),
		zap.String("participant_b", b.Hex()),
	)
	return &conv, nil
}

func (r *conversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := r.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.M{"last_activity": -1})
	convs, err := r.store.Find(ctx, db.NewFilter().Eq("participants", userID).Build(), opts)
	if err != nil {
		r.logger.Error("failed to list conversations",
			zap.String("user_id", userID.Hex()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// SetLastMessage updates the denormalized preview and bumps last activity.
func (r *conversationRepository) SetLastMessage(ctx context.Context, conversationID primitive.ObjectID, last model.LastMessage) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.store.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{
			"last_message":  last,
			"last_activity": last.SentAt,
			"updated_at":    last.SentAt,
		}},
	)
	if err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	return nil
}
