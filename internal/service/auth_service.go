package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"Murmur/internal/errs"
	"Murmur/internal/identity"
	"Murmur/internal/model"
	"Murmur/internal/repo"
)

// AuthService registers accounts and issues access tokens.
type AuthService interface {
	Register(ctx context.Context, name, username, email, password string) (model.PublicUser, string, error)
	Login(ctx context.Context, email, password string) (model.PublicUser, string, error)
}

type authService struct {
	users    repo.UserRepository
	verifier *identity.Verifier
	logger   *zap.Logger
}

func NewAuthService(users repo.UserRepository, verifier *identity.Verifier, logger *zap.Logger) AuthService {
	return &authService{users: users, verifier: verifier, logger: logger}
}

func (s *authService) Register(ctx context.Context, name, username, email, password string) (model.PublicUser, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if name == "" || email == "" || password == "" {
		return model.PublicUser{}, "", fmt.Errorf("%w: name, email and password are required", errs.ErrValidation)
	}
	if username == "" {
		username = strings.Split(email, "@")[0]
	}

	hash, err := identity.HashPassword(password)
	if err != nil {
		return model.PublicUser{}, "", err
	}

	user := &model.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.PublicUser{}, "", err
	}

	token, _, err := s.verifier.IssueToken(user.ID.Hex())
	if err != nil {
		return model.PublicUser{}, "", err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return user.Public(), token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (model.PublicUser, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return model.PublicUser{}, "", fmt.Errorf("%w: email and password are required", errs.ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil || !identity.VerifyPassword(password, user.PasswordHash) {
		// Do not reveal whether the account exists.
		return model.PublicUser{}, "", errs.ErrUnauthorized
	}

	token, _, err := s.verifier.IssueToken(user.ID.Hex())
	if err != nil {
		return model.PublicUser{}, "", err
	}
	return user.Public(), token, nil
}
