package db

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FilterBuilder assembles MongoDB filters fluently.
type FilterBuilder struct {
	filter bson.M
}

// NewFilter creates an empty FilterBuilder.
func NewFilter() *FilterBuilder {
	return &FilterBuilder{filter: bson.M{}}
}

// Eq adds an equality condition.
func (f *FilterBuilder) Eq(field string, value any) *FilterBuilder {
	f.filter[field] = value
	return f
}

// Ne adds a not-equal condition.
func (f *FilterBuilder) Ne(field string, value any) *FilterBuilder {
	f.filter[field] = bson.M{"$ne": value}
	return f
}

// In adds an $in condition.
func (f *FilterBuilder) In(field string, values any) *FilterBuilder {
	f.filter[field] = bson.M{"$in": values}
	return f
}

// All adds an $all condition (array contains every value). Composes with
// Size on the same field.
func (f *FilterBuilder) All(field string, values any) *FilterBuilder {
	existing, ok := f.filter[field].(bson.M)
	if !ok {
		existing = bson.M{}
		f.filter[field] = existing
	}
	existing["$all"] = values
	return f
}

// Size constrains an array field's length.
func (f *FilterBuilder) Size(field string, n int) *FilterBuilder {
	existing, ok := f.filter[field].(bson.M)
	if !ok {
		existing = bson.M{}
		f.filter[field] = existing
	}
	existing["$size"] = n
	return f
}

// ObjectID adds an equality condition on a hex ObjectID. Invalid hex pins the
// field to the zero ObjectID, which no server-issued id ever carries, so the
// query fails closed instead of dropping the condition.
func (f *FilterBuilder) ObjectID(field string, id string) *FilterBuilder {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		oid = primitive.NilObjectID
	}
	f.filter[field] = oid
	return f
}

// Build returns the assembled bson.M filter.
func (f *FilterBuilder) Build() bson.M {
	return f.filter
}
