package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a private two-party conversation in MongoDB. The participant
// set always holds exactly two user ids; the core reads it to route delivery
// and updates LastMessage/LastActivity after a successful send.
type Conversation struct {
	ID           primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Participants []primitive.ObjectID `json:"participants" bson:"participants"`
	LastMessage  *LastMessage         `json:"lastMessage,omitempty" bson:"last_message,omitempty"`
	LastActivity time.Time            `json:"lastActivity" bson:"last_activity"`
	CreatedAt    time.Time            `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time            `json:"updatedAt" bson:"updated_at"`
}

// LastMessage is the denormalized preview of the most recent message.
type LastMessage struct {
	MessageID primitive.ObjectID `json:"messageId" bson:"message_id"`
	Body      string             `json:"body" bson:"body"`
	SenderID  primitive.ObjectID `json:"senderId" bson:"sender_id"`
	SentAt    time.Time          `json:"sentAt" bson:"sent_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the participant that is not userID. The second return is
// false when userID is not a participant at all.
func (c *Conversation) Other(userID primitive.ObjectID) (primitive.ObjectID, bool) {
	if !c.HasParticipant(userID) {
		return primitive.NilObjectID, false
	}
	for _, p := range c.Participants {
		if p != userID {
			return p, true
		}
	}
	// Both participants are the same user; a self-conversation has no peer.
	return primitive.NilObjectID, false
}
