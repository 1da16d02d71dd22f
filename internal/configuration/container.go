package configuration

import (
	"Murmur/internal/db"
	"Murmur/internal/handler"
	"Murmur/internal/hub"
	"Murmur/internal/identity"
	"Murmur/internal/model"
	"Murmur/internal/repo"
	"Murmur/internal/service"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	AuthHandler handler.AuthHandler
	ChatHandler handler.ChatHandler
	Hub         *hub.Hub
	Verifier    *identity.Verifier
	Config      Config
	Logger      *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	userStore := db.NewStore[model.User](con, config.ChatDatabase.UsersCollection)
	conversationStore := db.NewStore[model.Conversation](con, config.ChatDatabase.ConversationsCollection)
	messageStore := db.NewStore[model.Message](con, config.ChatDatabase.MessagesCollection)

	userRepo := repo.NewUserRepository(userStore, logger)
	conversationRepo := repo.NewConversationRepository(conversationStore, logger)
	messageRepo := repo.NewMessageRepository(messageStore, logger)

	verifier := identity.NewVerifier(
		[]byte(config.Auth.JwtSecret),
		time.Duration(config.Auth.TokenTTLHours)*time.Hour,
	)

	gateway := repo.NewGateway(userRepo, conversationRepo, messageRepo)
	chatHub := hub.NewHub(gateway, verifier, hub.DefaultTypingTTL, logger)

	authService := service.NewAuthService(userRepo, verifier, logger)
	chatService := service.NewChatService(userRepo, conversationRepo, messageRepo, logger)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService, chatHub.Presence())

	return &Container{
		AuthHandler: authHandler,
		ChatHandler: chatHandler,
		Hub:         chatHub,
		Verifier:    verifier,
		Config:      *config,
		Logger:      logger,
		mongoClient: con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
