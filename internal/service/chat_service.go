package service

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"Murmur/internal/db"
	"Murmur/internal/errs"
	"Murmur/internal/model"
	"Murmur/internal/repo"
)

// ChatService backs the directory and conversation HTTP endpoints: the
// contact list, the caller's own profile, the caller's conversations,
// find-or-create, and the history fetch that lets an offline recipient catch
// up on persisted messages.
type ChatService interface {
	ListUsers(ctx context.Context, callerID string) ([]model.PublicUser, error)
	GetProfile(ctx context.Context, callerID string) (model.PublicUser, error)
	UpdateProfile(ctx context.Context, callerID, name, avatar string) (model.PublicUser, error)
	ListConversations(ctx context.Context, callerID string) ([]model.Conversation, error)
	OpenConversation(ctx context.Context, callerID, participantID string) (*model.Conversation, error)
	History(ctx context.Context, callerID, conversationID string, page int64) (*db.Page[model.Message], error)
}

type chatService struct {
	users         repo.UserRepository
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	logger        *zap.Logger
}

func NewChatService(users repo.UserRepository, conversations repo.ConversationRepository, messages repo.MessageRepository, logger *zap.Logger) ChatService {
	return &chatService{users: users, conversations: conversations, messages: messages, logger: logger}
}

func (s *chatService) ListUsers(ctx context.Context, callerID string) ([]model.PublicUser, error) {
	users, err := s.users.ListOthers(ctx, callerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (s *chatService) GetProfile(ctx context.Context, callerID string) (model.PublicUser, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return model.PublicUser{}, err
	}
	return user.Public(), nil
}

// UpdateProfile applies the name and avatar fields the caller sent; empty
// fields are left untouched.
func (s *chatService) UpdateProfile(ctx context.Context, callerID, name, avatar string) (model.PublicUser, error) {
	name = strings.TrimSpace(name)
	if name == "" && avatar == "" {
		return model.PublicUser{}, fmt.Errorf("%w: nothing to update", errs.ErrValidation)
	}

	user, err := s.users.UpdateProfile(ctx, callerID, name, avatar)
	if err != nil {
		return model.PublicUser{}, err
	}
	s.logger.Info("profile updated", zap.String("user_id", callerID))
	return user.Public(), nil
}

func (s *chatService) ListConversations(ctx context.Context, callerID string) ([]model.Conversation, error) {
	callerOID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad caller id", errs.ErrValidation)
	}
	return s.conversations.ListForUser(ctx, callerOID)
}

// OpenConversation returns the private conversation between the caller and
// participantID, creating it when none exists.
func (s *chatService) OpenConversation(ctx context.Context, callerID, participantID string) (*model.Conversation, error) {
	callerOID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad caller id", errs.ErrValidation)
	}
	otherOID, err := primitive.ObjectIDFromHex(participantID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad participant id", errs.ErrValidation)
	}
	if callerOID == otherOID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", errs.ErrValidation)
	}
	if _, err := s.users.GetByID(ctx, participantID); err != nil {
		return nil, err
	}
	return s.conversations.FindOrCreatePrivate(ctx, callerOID, otherOID)
}

// History returns one page of messages, oldest first, after verifying the
// caller participates in the conversation.
func (s *chatService) History(ctx context.Context, callerID, conversationID string, page int64) (*db.Page[model.Message], error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	callerOID, err := primitive.ObjectIDFromHex(callerID)
	if err != nil || !conv.HasParticipant(callerOID) {
		s.logger.Warn("history rejected: caller is not a participant",
			zap.String("conversation_id", conversationID),
			zap.String("caller_id", callerID),
		)
		return nil, errs.ErrRouting
	}
	return s.messages.History(ctx, conversationID, page)
}
