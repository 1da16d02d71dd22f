package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterBuilder_Basics(t *testing.T) {
	filter := NewFilter().Eq("email", "a@b.c").Ne("status", "deleted").Build()

	assert.Equal(t, bson.M{
		"email":  "a@b.c",
		"status": bson.M{"$ne": "deleted"},
	}, filter)
}

func TestFilterBuilder_AllComposesWithSize(t *testing.T) {
	ids := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}

	filter := NewFilter().All("participants", ids).Size("participants", 2).Build()

	cond, ok := filter["participants"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, ids, cond["$all"])
	assert.Equal(t, 2, cond["$size"])

	// Order of the calls must not matter.
	reversed := NewFilter().Size("participants", 2).All("participants", ids).Build()
	assert.Equal(t, filter, reversed)
}

func TestFilterBuilder_ObjectID(t *testing.T) {
	oid := primitive.NewObjectID()

	filter := NewFilter().ObjectID("_id", oid.Hex()).Build()
	assert.Equal(t, bson.M{"_id": oid}, filter)

	// Invalid hex must fail closed: the condition is pinned to the zero id,
	// which no stored document carries, never dropped from the filter.
	filter = NewFilter().ObjectID("_id", "not-hex").Build()
	assert.Equal(t, bson.M{"_id": primitive.NilObjectID}, filter)
}

func TestFilterBuilder_InvalidHexNeverWidensFilter(t *testing.T) {
	valid := NewFilter().ObjectID("conversation_id", primitive.NewObjectID().Hex()).Build()
	invalid := NewFilter().ObjectID("conversation_id", "not-a-hex-id").Build()

	// Both filters constrain the field; the malformed id must not produce an
	// empty filter that matches every document.
	require.Len(t, valid, 1)
	require.Len(t, invalid, 1)
	assert.Equal(t, primitive.NilObjectID, invalid["conversation_id"])
}
