package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestConversation_Other(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	conv := &Conversation{Participants: []primitive.ObjectID{a, b}}

	partner, ok := conv.Other(a)
	require.True(t, ok)
	assert.Equal(t, b, partner)

	partner, ok = conv.Other(b)
	require.True(t, ok)
	assert.Equal(t, a, partner)

	_, ok = conv.Other(primitive.NewObjectID())
	assert.False(t, ok, "a non-participant has no peer")
}

func TestConversation_HasParticipant(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	conv := &Conversation{Participants: []primitive.ObjectID{a, b}}

	assert.True(t, conv.HasParticipant(a))
	assert.False(t, conv.HasParticipant(primitive.NewObjectID()))
}
