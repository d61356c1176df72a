package documents

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/binsarkiel/chatto/internal/models"
)

type statusDocument struct {
	UserID string     `bson:"user_id"`
	Read   bool       `bson:"is_read"`
	ReadAt *time.Time `bson:"read_at,omitempty"`
}

type messageDocument struct {
	ID             string           `bson:"_id"`
	ConversationID string           `bson:"conversation_id"`
	SenderID       string           `bson:"sender_id"`
	Content        string           `bson:"content"`
	CreatedAt      time.Time        `bson:"created_at"`
	Status         []statusDocument `bson:"status"`
}

func (d *messageDocument) toModel(senderName string) *models.Message {
	message := models.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		SenderName:     senderName,
		Content:        d.Content,
		CreatedAt:      d.CreatedAt,
	}
	for _, s := range d.Status {
		message.ReadBy = append(message.ReadBy, models.ReadReceipt{
			UserID: s.UserID,
			Read:   s.Read,
			ReadAt: s.ReadAt,
		})
	}
	return &message
}

type MessageStore struct {
	coll          *mongo.Collection
	conversations *mongo.Collection
	users         *UserStore
	logger        *slog.Logger
}

func NewMessageStore(coll, conversations *mongo.Collection, users *UserStore, logger *slog.Logger) *MessageStore {
	return &MessageStore{coll: coll, conversations: conversations, users: users, logger: logger}
}

func (s *MessageStore) Append(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	var conversation conversationDocument
	err := s.conversations.FindOne(ctx, bson.M{"_id": conversationID}).Decode(&conversation)
	if err != nil {
		return nil, err
	}

	doc := messageDocument{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	for _, m := range conversation.Members {
		if m.UserID == senderID {
			continue
		}
		doc.Status = append(doc.Status, statusDocument{UserID: m.UserID})
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}

	// $max keeps last_activity monotonic under concurrent appends.
	_, err = s.conversations.UpdateOne(ctx, bson.M{"_id": conversationID},
		bson.M{"$max": bson.M{"last_activity": doc.CreatedAt}})
	if err != nil {
		return nil, err
	}

	names, err := s.users.usernames(ctx, []string{senderID})
	if err != nil {
		return nil, err
	}

	return doc.toModel(names[senderID]), nil
}

func (s *MessageStore) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"conversation_id": conversationID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []messageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	senderIDs := make([]string, 0, len(docs))
	seen := make(map[string]bool)
	for _, d := range docs {
		if !seen[d.SenderID] {
			seen[d.SenderID] = true
			senderIDs = append(senderIDs, d.SenderID)
		}
	}
	names, err := s.users.usernames(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(docs))
	for i := range docs {
		messages = append(messages, *docs[i].toModel(names[docs[i].SenderID]))
	}
	return messages, nil
}

func (s *MessageStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	now := time.Now().UTC()
	_, err := s.coll.UpdateMany(ctx,
		bson.M{
			"conversation_id": conversationID,
			"status":          bson.M{"$elemMatch": bson.M{"user_id": userID, "is_read": false}},
		},
		bson.M{"$set": bson.M{
			"status.$[s].is_read": true,
			"status.$[s].read_at": now,
		}},
		options.UpdateMany().SetArrayFilters([]any{
			bson.M{"s.user_id": userID, "s.is_read": false},
		}))
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	return nil
}
