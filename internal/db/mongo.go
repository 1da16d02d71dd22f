// Package db wraps the MongoDB driver with a small typed store and a fluent
// filter builder used by the repositories.
package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// OpenConnection connects to MongoDB, verifies the connection with a ping,
// and returns a handle to the named database.
func OpenConnection(uri string, database string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client.Database(database), nil
}

// PageParams holds pagination configuration for list queries.
type PageParams struct {
	Page     int64  // 1-based
	PageSize int64
	SortBy   string
	SortDesc bool
}

// Page holds one page of results plus paging metadata.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalPages int64 `json:"totalPages"`
}

// Store provides typed CRUD access to a single collection.
type Store[T any] struct {
	collection *mongo.Collection
}

// NewStore binds a typed store to a collection.
func NewStore[T any](db *mongo.Database, collectionName string) *Store[T] {
	return &Store[T]{collection: db.Collection(collectionName)}
}

// Insert writes a new document and returns its generated ObjectID.
func (s *Store[T]) Insert(ctx context.Context, document T) (primitive.ObjectID, error) {
	res, err := s.collection.InsertOne(ctx, document)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid, nil
	}
	return primitive.NilObjectID, nil
}

// FindOne returns the first document matching the filter.
func (s *Store[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var result T
	if err := s.collection.FindOne(ctx, filter).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByID returns the document with the given hex ObjectID.
func (s *Store[T]) FindByID(ctx context.Context, id string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	return s.FindOne(ctx, bson.M{"_id": oid})
}

// Find returns all documents matching the filter, optionally sorted.
func (s *Store[T]) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := s.collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// FindPage returns one page of documents matching the filter.
func (s *Store[T]) FindPage(ctx context.Context, filter bson.M, params PageParams) (*Page[T], error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find().
		SetSkip((params.Page - 1) * params.PageSize).
		SetLimit(params.PageSize)
	if params.SortBy != "" {
		order := 1
		if params.SortDesc {
			order = -1
		}
		findOpts.SetSort(bson.D{{Key: params.SortBy, Value: order}})
	}

	data, err := s.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}

	totalPages := total / params.PageSize
	if total%params.PageSize > 0 {
		totalPages++
	}
	return &Page[T]{
		Data:       data,
		Total:      total,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalPages: totalPages,
	}, nil
}

// UpdateOne applies the update document to the first match.
func (s *Store[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	return s.collection.UpdateOne(ctx, filter, update)
}

// UpdateMany applies the update document to every match.
func (s *Store[T]) UpdateMany(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	return s.collection.UpdateMany(ctx, filter, update)
}

// Count counts documents matching the filter.
func (s *Store[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.collection.CountDocuments(ctx, filter)
}

// Exists reports whether any document matches the filter.
func (s *Store[T]) Exists(ctx context.Context, filter bson.M) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
