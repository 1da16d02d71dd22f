package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"Murmur/internal/db"
	"Murmur/internal/errs"
	"Murmur/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListOthers(ctx context.Context, excludeID string) ([]model.User, error)
	UpdateProfile(ctx context.Context, id string, name, avatar string) (*model.User, error)
	TouchLastSeen(ctx context.Context, id string, at time.Time) error
}

type userRepository struct {
	store  *db.Store[model.User]
	logger *zap.Logger
}

func NewUserRepository(store *db.Store[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{store: store, logger: logger}
}

// Create inserts a new account after checking email uniqueness.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	taken, err := r.store.Exists(ctx, db.NewFilter().Eq("email", user.Email).Build())
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if taken {
		return fmt.Errorf("%w: email %s", errs.ErrAlreadyExists, user.Email)
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.LastSeen = now

	id, err := r.store.Insert(ctx, *user)
	if err != nil {
		r.logger.Error("failed to insert user", zap.Error(err))
		return fmt.Errorf("insert user: %w", err)
	}
	user.ID = id

	r.logger.Info("user created", zap.String("user_id", id.Hex()))
	return nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.store.FindOne(ctx, db.NewFilter().Eq("email", email).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

// ListOthers returns every account except excludeID, for the contact list.
func (r *userRepository) ListOthers(ctx context.Context, excludeID string) ([]model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := bson.M{}
	if excludeID != "" {
		filter = db.NewFilter().Ne("_id", mustObjectID(excludeID)).Build()
	}

	users, err := r.store.Find(ctx, filter)
	if err != nil {
		r.logger.Error("failed to list users", zap.Error(err))
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateProfile applies the non-empty profile fields and returns the updated
// account.
func (r *userRepository) UpdateProfile(ctx context.Context, id string, name, avatar string) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if name != "" {
		set["name"] = name
	}
	if avatar != "" {
		set["avatar"] = avatar
	}

	_, err := r.store.UpdateOne(ctx,
		db.NewFilter().ObjectID("_id", id).Build(),
		bson.M{"$set": set},
	)
	if err != nil {
		r.logger.Error("failed to update profile", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return r.GetByID(ctx, id)
}

// TouchLastSeen records the moment the user's last connection closed.
func (r *userRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.store.UpdateOne(ctx,
		db.NewFilter().ObjectID("_id", id).Build(),
		bson.M{"$set": bson.M{"last_seen": at, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	return nil
}
