// Package documents implements the repository ports on MongoDB. It is the
// document-store counterpart of the postgres repositories and is selected by
// the database.driver config key.
package documents

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/binsarkiel/chatto/app/config"
)

type DocumentStoreAdapter struct {
	client *mongo.Client

	User         *UserStore
	Conversation *ConversationStore
	Message      *MessageStore
}

func NewDocumentStoreAdapter(cfg config.DatabaseConfig, logger *slog.Logger) (*DocumentStoreAdapter, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}

	db := client.Database(cfg.MongoDatabase)
	users := db.Collection("users")
	conversations := db.Collection("conversations")
	messages := db.Collection("messages")

	if err := ensureIndexes(ctx, users, conversations, messages); err != nil {
		return nil, err
	}

	userStore := NewUserStore(users, logger)
	conversationStore := NewConversationStore(conversations, messages, userStore, logger)
	messageStore := NewMessageStore(messages, conversations, userStore, logger)

	logger.Info("mongo stores initialized", "database", cfg.MongoDatabase)

	return &DocumentStoreAdapter{
		client:       client,
		User:         userStore,
		Conversation: conversationStore,
		Message:      messageStore,
	}, nil
}

func ensureIndexes(ctx context.Context, users, conversations, messages *mongo.Collection) error {
	_, err := users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: map[string]any{"username": 1}, Options: options.Index().SetUnique(true)},
		{Keys: map[string]any{"email": 1}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}

	// Sparse so group conversations, which carry no pair key, stay out of the
	// uniqueness check.
	_, err = conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    map[string]any{"direct_key": 1},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return err
	}

	_, err = messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: map[string]any{"conversation_id": 1, "created_at": 1},
	})
	return err
}

func (a *DocumentStoreAdapter) HealthCheck(ctx context.Context) error {
	return a.client.Ping(ctx, readpref.Primary())
}

func (a *DocumentStoreAdapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}
