package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"Murmur/internal/db"
	"Murmur/internal/errs"
	"Murmur/internal/model"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	// Read-path retry configuration. Writes are never retried: a duplicated
	// message is worse than a visible send failure.
	maxReadRetries = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	historyPageSize = 25
)

type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) error
	History(ctx context.Context, conversationID string, page int64) (*db.Page[model.Message], error)
	MarkDelivered(ctx context.Context, id primitive.ObjectID) error
	MarkRead(ctx context.Context, conversationID, readerID primitive.ObjectID, messageIDs []primitive.ObjectID, at time.Time) ([]primitive.ObjectID, error)
}

type messageRepository struct {
	store  *db.Store[model.Message]
	logger *zap.Logger
}

func NewMessageRepository(store *db.Store[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{store: store, logger: logger}
}

// Insert persists a message in a single attempt and fills in the assigned id.
func (r *messageRepository) Insert(ctx context.Context, msg *model.Message) error {
	if msg == nil || msg.ConversationID.IsZero() || msg.SenderID.IsZero() {
		return fmt.Errorf("%w: message is missing conversation or sender", errs.ErrValidation)
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	id, err := r.store.Insert(ctx, *msg)
	if err != nil {
		r.logger.Error("failed to insert message",
			zap.String("conversation_id", msg.ConversationID.Hex()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", errs.ErrPersist, err)
	}
	msg.ID = id

	r.logger.Info("message inserted",
		zap.String("message_id", id.Hex()),
		zap.String("conversation_id", msg.ConversationID.Hex()),
	)
	return nil
}

// History returns one page of a conversation's messages, oldest first, so an
// offline recipient catches up in persisted order.
func (r *messageRepository) History(ctx context.Context, conversationID string, page int64) (*db.Page[model.Message], error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation id is empty", errs.ErrValidation)
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("conversation_id", conversationID).Build()

	var lastErr error
	for attempt := 0; attempt < maxReadRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			r.logger.Warn("retrying message history",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := r.store.FindPage(ctx, filter, db.PageParams{
			Page:     page,
			PageSize: historyPageSize,
			SortBy:   "created_at",
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	if errors.Is(lastErr, mongo.ErrNoDocuments) {
		return &db.Page[model.Message]{Data: []model.Message{}, Page: page, PageSize: historyPageSize}, nil
	}
	r.logger.Error("failed to load message history",
		zap.String("conversation_id", conversationID),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("message history: %w", lastErr)
}

// MarkDelivered raises the aggregate status from sent to delivered. The
// status-guarded filter keeps it monotonic: a message already read never
// drops back to delivered.
func (r *messageRepository) MarkDelivered(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.store.UpdateOne(ctx,
		bson.M{"_id": id, "status": model.StatusSent},
		bson.M{"$set": bson.M{"status": model.StatusDelivered}},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPersist, err)
	}
	return nil
}

// MarkRead upserts one read receipt per (message, reader) pair and returns the
// ids that were newly marked. Messages already read by readerID are skipped,
// so repeated calls are no-ops. The aggregate status field is raised to read
// alongside the receipt.
func (r *messageRepository) MarkRead(ctx context.Context, conversationID, readerID primitive.ObjectID, messageIDs []primitive.ObjectID, at time.Time) ([]primitive.ObjectID, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	receipt := model.ReadReceipt{UserID: readerID, ReadAt: at}
	newlyMarked := make([]primitive.ObjectID, 0, len(messageIDs))

	for _, id := range messageIDs {
		filter := bson.M{
			"_id":             id,
			"conversation_id": conversationID,
			"read_by.user_id": bson.M{"$ne": readerID},
		}
		update := bson.M{
			"$push": bson.M{"read_by": receipt},
			"$set":  bson.M{"status": model.StatusRead},
		}
		res, err := r.store.UpdateOne(ctx, filter, update)
		if err != nil {
			r.logger.Error("failed to record read receipt",
				zap.String("message_id", id.Hex()),
				zap.String("reader_id", readerID.Hex()),
				zap.Error(err),
			)
			return newlyMarked, fmt.Errorf("%w: %v", errs.ErrPersist, err)
		}
		if res.ModifiedCount > 0 {
			newlyMarked = append(newlyMarked, id)
		}
	}
	return newlyMarked, nil
}

// -----------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func mustObjectID(id string) primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}
