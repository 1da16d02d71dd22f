package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery status values. Status is monotonically non-decreasing: a message
// never moves back from read to delivered or sent. Per-reader read state is
// tracked in ReadBy; the flat Status field is the legacy aggregate kept for
// client list rendering.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Message represents a persisted chat message in MongoDB. ID and SenderID are
// immutable once the document is written.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       primitive.ObjectID `json:"senderId" bson:"sender_id"`
	Body           string             `json:"body" bson:"body"`
	Status         string             `json:"status" bson:"status"`
	ReadBy         []ReadReceipt      `json:"readBy" bson:"read_by"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
}

// ReadReceipt records that one reader has read the message. At most one
// receipt exists per (message, reader) pair; marking read is idempotent.
type ReadReceipt struct {
	UserID primitive.ObjectID `json:"userId" bson:"user_id"`
	ReadAt time.Time          `json:"readAt" bson:"read_at"`
}
