package hub

import (
	"context"

	"go.uber.org/zap"

	"Murmur/internal/event"
)

// ReceiptTracker records read receipts and broadcasts read events to the
// other participant. Receipts are idempotent per (message, reader): the
// gateway only reports ids that gained a receipt in this call, and the
// broadcast fires only when that set is non-empty, so re-marking an
// already-read batch produces no second event.
type ReceiptTracker struct {
	gateway  Gateway
	presence *Registry
	deliver  Delivery
	logger   *zap.Logger
}

func NewReceiptTracker(gateway Gateway, presence *Registry, deliver Delivery, logger *zap.Logger) *ReceiptTracker {
	return &ReceiptTracker{gateway: gateway, presence: presence, deliver: deliver, logger: logger}
}

// MarkRead records that readerID has read the given messages of a
// conversation. A reader who is not a participant is rejected and logged,
// without feedback to the caller.
func (rt *ReceiptTracker) MarkRead(ctx context.Context, readerID, conversationID string, messageIDs []string) {
	participants, err := rt.gateway.ConversationParticipants(ctx, conversationID)
	if err != nil {
		rt.logger.Warn("read receipt lookup failed",
			zap.String("conversation_id", conversationID),
			zap.String("reader_id", readerID),
			zap.Error(err),
		)
		return
	}

	partnerID := ""
	isParticipant := false
	for _, p := range participants {
		if p == readerID {
			isParticipant = true
		} else {
			partnerID = p
		}
	}
	if !isParticipant {
		rt.logger.Warn("read receipt rejected: reader is not a participant",
			zap.String("conversation_id", conversationID),
			zap.String("reader_id", readerID),
		)
		return
	}

	newlyMarked, err := rt.gateway.MarkMessagesRead(ctx, conversationID, readerID, messageIDs)
	if err != nil {
		rt.logger.Error("failed to record read receipts",
			zap.String("conversation_id", conversationID),
			zap.String("reader_id", readerID),
			zap.Error(err),
		)
		return
	}
	if len(newlyMarked) == 0 || partnerID == "" {
		return
	}

	ev := event.MessageRead(newlyMarked, readerID)
	for _, connID := range rt.presence.LiveConnections(partnerID) {
		rt.deliver.Push(connID, ev)
	}
}
