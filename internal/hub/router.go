package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"Murmur/internal/errs"
	"Murmur/internal/event"
)

const (
	sendQueueSize   = 64
	queueIdleAfter  = time.Minute
	persistDeadline = 10 * time.Second
)

type sendJob struct {
	originConnID   string
	senderID       string
	recipientID    string
	conversationID string
	text           string
	tempID         string
}

// MessageRouter persists and delivers messages. Each active conversation gets
// one worker goroutine owning an ordered queue: jobs are enqueued from the
// sending connection's read loop, so concurrently-arriving sends from one
// connection are never reordered, and delivery order always matches persisted
// order within a conversation. The sending connection is never blocked on
// persistence; the outcome comes back asynchronously as message:sent or
// message:error.
//
// All fan-out happens in-process. A multi-instance deployment would hook an
// inter-instance broadcast fabric into deliverFanout; single-instance is the
// guaranteed contract.
type MessageRouter struct {
	gateway  Gateway
	presence *Registry
	deliver  Delivery
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]chan sendJob
}

// NewMessageRouter constructs a router. Stop must be called on shutdown.
func NewMessageRouter(gateway Gateway, presence *Registry, deliver Delivery, logger *zap.Logger) *MessageRouter {
	ctx, cancel := context.WithCancel(context.Background())
	return &MessageRouter{
		gateway:  gateway,
		presence: presence,
		deliver:  deliver,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		queues:   make(map[string]chan sendJob),
	}
}

// Send validates the request and enqueues it on the conversation's ordered
// queue. Validation failures and a saturated queue are reported to the
// originating connection as message:error; the connection stays open.
func (mr *MessageRouter) Send(job sendJob) {
	if reason, ok := validateSend(job); !ok {
		mr.deliver.Push(job.originConnID, event.MessageError(job.tempID, reason))
		return
	}

	mr.mu.Lock()
	q, ok := mr.queues[job.conversationID]
	if !ok {
		q = make(chan sendJob, sendQueueSize)
		mr.queues[job.conversationID] = q
		mr.wg.Add(1)
		go mr.work(job.conversationID, q)
	}

	select {
	case q <- job:
		mr.mu.Unlock()
	default:
		mr.mu.Unlock()
		mr.logger.Warn("send queue full",
			zap.String("conversation_id", job.conversationID),
			zap.String("sender_id", job.senderID),
		)
		mr.deliver.Push(job.originConnID, event.MessageError(job.tempID, "conversation is busy, try again"))
	}
}

// ActiveQueues returns the number of conversations with a live worker.
func (mr *MessageRouter) ActiveQueues() int {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return len(mr.queues)
}

// Stop cancels all workers and waits for in-flight jobs to finish.
func (mr *MessageRouter) Stop() {
	mr.cancel()
	mr.wg.Wait()
}

func validateSend(job sendJob) (reason string, ok bool) {
	if job.text == "" {
		return "message text is empty", false
	}
	if job.conversationID == "" || job.recipientID == "" {
		return "recipient and conversation are required", false
	}
	return "", true
}

func (mr *MessageRouter) work(conversationID string, q chan sendJob) {
	defer mr.wg.Done()

	idle := time.NewTimer(queueIdleAfter)
	defer idle.Stop()

	for {
		select {
		case <-mr.ctx.Done():
			return
		case job := <-q:
			mr.process(job)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(queueIdleAfter)
		case <-idle.C:
			// Retire the worker only when no enqueue can race the removal.
			mr.mu.Lock()
			if len(q) == 0 {
				delete(mr.queues, conversationID)
				mr.mu.Unlock()
				return
			}
			mr.mu.Unlock()
			idle.Reset(queueIdleAfter)
		}
	}
}

// process runs the full send pipeline for one job: participant check, persist,
// conversation preview update, fan-out. A disconnect of the sender does not
// cancel a pending persist; delivery to vanished connections is skipped.
func (mr *MessageRouter) process(job sendJob) {
	ctx, cancel := context.WithTimeout(mr.ctx, persistDeadline)
	defer cancel()

	if err := mr.checkParticipants(ctx, job); err != nil {
		mr.logger.Warn("send rejected",
			zap.String("conversation_id", job.conversationID),
			zap.String("sender_id", job.senderID),
			zap.Error(err),
		)
		mr.deliver.Push(job.originConnID, event.MessageError(job.tempID, "not a participant of this conversation"))
		return
	}

	msg, err := mr.gateway.CreateMessage(ctx, job.conversationID, job.senderID, job.text)
	if err != nil {
		mr.logger.Error("failed to persist message",
			zap.String("conversation_id", job.conversationID),
			zap.Error(err),
		)
		// No retry here: the sender decides whether to resend.
		mr.deliver.Push(job.originConnID, event.MessageError(job.tempID, "failed to persist message"))
		return
	}

	if err := mr.gateway.UpdateConversationLastMessage(ctx, msg); err != nil {
		// The message is durable; a stale preview is tolerable.
		mr.logger.Warn("failed to update conversation preview",
			zap.String("conversation_id", job.conversationID),
			zap.Error(err),
		)
	}

	reachedRecipient := mr.deliverFanout(job, event.MessageNew(msg))
	mr.deliver.Push(job.originConnID, event.MessageSent(job.tempID, msg))

	if reachedRecipient {
		if err := mr.gateway.MarkMessageDelivered(ctx, msg.ID.Hex()); err != nil {
			// Status stays at sent; the next read receipt raises it anyway.
			mr.logger.Warn("failed to mark message delivered",
				zap.String("message_id", msg.ID.Hex()),
				zap.Error(err),
			)
		}
	}
}

// checkParticipants verifies the conversation's participant set is exactly
// {sender, recipient}; anything else is a routing error.
func (mr *MessageRouter) checkParticipants(ctx context.Context, job sendJob) error {
	participants, err := mr.gateway.ConversationParticipants(ctx, job.conversationID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: conversation not found", errs.ErrRouting)
		}
		return err
	}
	if len(participants) != 2 {
		return fmt.Errorf("%w: not a two-party conversation", errs.ErrRouting)
	}
	hasSender, hasRecipient := false, false
	for _, p := range participants {
		switch p {
		case job.senderID:
			hasSender = true
		case job.recipientID:
			hasRecipient = true
		}
	}
	if !hasSender || !hasRecipient {
		return fmt.Errorf("%w: participant mismatch", errs.ErrRouting)
	}
	return nil
}

// deliverFanout pushes message:new to every live connection of the recipient
// and to the sender's other connections (multi-device consistency). The
// originating connection gets message:sent instead. An offline recipient is
// skipped silently: the message is durable and surfaces on the next history
// fetch. Reports whether at least one recipient connection took the frame,
// which is what raises the message to delivered.
func (mr *MessageRouter) deliverFanout(job sendJob, ev event.WsEvent) bool {
	reached := false
	for _, connID := range mr.presence.LiveConnections(job.recipientID) {
		if mr.deliver.Push(connID, ev) {
			reached = true
		}
	}
	for _, connID := range mr.presence.LiveConnections(job.senderID) {
		if connID == job.originConnID {
			continue
		}
		mr.deliver.Push(connID, ev)
	}
	return reached
}
