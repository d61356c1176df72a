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
	"github.com/binsarkiel/chatto/internal/ports"
)

type userDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password_hash"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:        d.ID,
		Username:  d.Username,
		Email:     d.Email,
		Password:  d.Password,
		CreatedAt: d.CreatedAt,
	}
}

type UserStore struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

func NewUserStore(coll *mongo.Collection, logger *slog.Logger) *UserStore {
	return &UserStore{coll: coll, logger: logger}
}

func (s *UserStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	doc := userDocument{
		ID:        uuid.New().String(),
		Username:  username,
		Email:     email,
		Password:  passwordHash,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ports.ErrDuplicate
		}
		return nil, err
	}

	return doc.toModel(), nil
}

func (s *UserStore) getUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, bson.M{"email": email})
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, bson.M{"username": username})
}

func (s *UserStore) ListUsers(ctx context.Context, excludeID string) ([]models.User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$ne": excludeID}},
		options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].toModel())
	}
	return users, nil
}

func (s *UserStore) UpdateUsername(ctx context.Context, id, username string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"username": username}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// usernames resolves display names for a set of user ids in one query.
func (s *UserStore) usernames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Username
	}
	return names, nil
}
