package documents

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
)

type memberDocument struct {
	UserID   string    `bson:"user_id"`
	Role     string    `bson:"role"`
	JoinedAt time.Time `bson:"joined_at"`
}

type conversationDocument struct {
	ID           string           `bson:"_id"`
	Kind         string           `bson:"kind"`
	Name         string           `bson:"name,omitempty"`
	Description  string           `bson:"description,omitempty"`
	CreatedBy    string           `bson:"created_by,omitempty"`
	DirectKey    string           `bson:"direct_key,omitempty"`
	Members      []memberDocument `bson:"members"`
	LastActivity *time.Time       `bson:"last_activity,omitempty"`
	CreatedAt    time.Time        `bson:"created_at"`
}

type ConversationStore struct {
	coll     *mongo.Collection
	messages *mongo.Collection
	users    *UserStore
	logger   *slog.Logger
}

func NewConversationStore(coll, messages *mongo.Collection, users *UserStore, logger *slog.Logger) *ConversationStore {
	return &ConversationStore{coll: coll, messages: messages, users: users, logger: logger}
}

func (s *ConversationStore) toModel(ctx context.Context, doc *conversationDocument) (*models.Conversation, error) {
	ids := make([]string, 0, len(doc.Members))
	for _, m := range doc.Members {
		ids = append(ids, m.UserID)
	}
	names, err := s.users.usernames(ctx, ids)
	if err != nil {
		return nil, err
	}

	conversation := models.Conversation{
		ID:           doc.ID,
		Kind:         models.ConversationKind(doc.Kind),
		Name:         doc.Name,
		Description:  doc.Description,
		CreatedBy:    doc.CreatedBy,
		LastActivity: doc.LastActivity,
		CreatedAt:    doc.CreatedAt,
	}
	for _, m := range doc.Members {
		conversation.Members = append(conversation.Members, models.Member{
			UserID:   m.UserID,
			Username: names[m.UserID],
			Role:     models.MemberRole(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return &conversation, nil
}

// FindOrCreateDirect leans on the sparse unique index over direct_key: the
// losing insert of a concurrent pair comes back as a duplicate-key error and
// the winner's document is returned instead.
func (s *ConversationStore) FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	now := time.Now().UTC()
	doc := conversationDocument{
		ID:        uuid.New().String(),
		Kind:      string(models.KindDirect),
		DirectKey: models.DirectKey(userA, userB),
		Members: []memberDocument{
			{UserID: userA, Role: string(models.RoleMember), JoinedAt: now},
			{UserID: userB, Role: string(models.RoleMember), JoinedAt: now},
		},
		CreatedAt: now,
	}

	_, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, err
		}
		var existing conversationDocument
		err := s.coll.FindOne(ctx, bson.M{"direct_key": doc.DirectKey}).Decode(&existing)
		if err != nil {
			return nil, false, err
		}
		conversation, err := s.toModel(ctx, &existing)
		return conversation, false, err
	}

	conversation, err := s.toModel(ctx, &doc)
	return conversation, true, err
}

func (s *ConversationStore) CreateGroup(ctx context.Context, creatorID, name, description string) (*models.Conversation, error) {
	now := time.Now().UTC()
	doc := conversationDocument{
		ID:          uuid.New().String(),
		Kind:        string(models.KindGroup),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		Members: []memberDocument{
			{UserID: creatorID, Role: string(models.RoleAdmin), JoinedAt: now},
		},
		CreatedAt: now,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return s.toModel(ctx, &doc)
}

func (s *ConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var doc conversationDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return s.toModel(ctx, &doc)
}

func (s *ConversationStore) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"members.user_id": userID})
	if err != nil {
		return nil, err
	}

	var docs []conversationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(docs))
	for i := range docs {
		conversation, err := s.toModel(ctx, &docs[i])
		if err != nil {
			return nil, err
		}

		summary := models.ConversationSummary{Conversation: *conversation}

		var latest messageDocument
		err = s.messages.FindOne(ctx, bson.M{"conversation_id": conversation.ID},
			options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})).
			Decode(&latest)
		switch {
		case err == nil:
			names, err := s.users.usernames(ctx, []string{latest.SenderID})
			if err != nil {
				return nil, err
			}
			summary.LatestMessage = latest.toModel(names[latest.SenderID])
		case !errors.Is(err, mongo.ErrNoDocuments):
			return nil, err
		}

		unread, err := s.messages.CountDocuments(ctx, bson.M{
			"conversation_id": conversation.ID,
			"status":          bson.M{"$elemMatch": bson.M{"user_id": userID, "is_read": false}},
		})
		if err != nil {
			return nil, err
		}
		summary.UnreadCount = int(unread)

		summaries = append(summaries, summary)
	}

	// Same ordering rule as the relational store: last activity descending,
	// no-message conversations last, id ascending on ties.
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i].LastActivity, summaries[j].LastActivity
		switch {
		case a == nil && b == nil:
			return summaries[i].ID < summaries[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return summaries[i].ID < summaries[j].ID
		default:
			return a.After(*b)
		}
	})

	return summaries, nil
}

func (s *ConversationStore) AddMember(ctx context.Context, conversationID, userID string, role models.MemberRole) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": conversationID, "members.user_id": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"members": memberDocument{
			UserID:   userID,
			Role:     string(role),
			JoinedAt: time.Now().UTC(),
		}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		member, err := s.coll.CountDocuments(ctx, bson.M{"_id": conversationID, "members.user_id": userID})
		if err != nil {
			return err
		}
		if member > 0 {
			return ports.ErrDuplicate
		}
		return ports.ErrNotFound
	}
	return nil
}

// RemoveMemberGuarded only matches when some other admin remains, so a group
// can never lose its last admin even under concurrent removals.
func (s *ConversationStore) RemoveMemberGuarded(ctx context.Context, conversationID, userID string) error {
	filter := bson.M{
		"_id":             conversationID,
		"members.user_id": userID,
		"$or": []bson.M{
			{"members": bson.M{"$elemMatch": bson.M{"user_id": userID, "role": string(models.RoleMember)}}},
			{"members": bson.M{"$elemMatch": bson.M{"user_id": bson.M{"$ne": userID}, "role": string(models.RoleAdmin)}}},
		},
	}

	res, err := s.coll.UpdateOne(ctx, filter,
		bson.M{"$pull": bson.M{"members": bson.M{"user_id": userID}}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		member, err := s.coll.CountDocuments(ctx, bson.M{"_id": conversationID, "members.user_id": userID})
		if err != nil {
			return err
		}
		if member == 0 {
			return ports.ErrNotFound
		}
		return ports.ErrPrecondition
	}
	return nil
}

// TransferAdmin updates both roles in a single document write, which MongoDB
// applies atomically.
func (s *ConversationStore) TransferAdmin(ctx context.Context, conversationID, fromID, toID string) error {
	filter := bson.M{
		"_id": conversationID,
		"$and": []bson.M{
			{"members.user_id": fromID},
			{"members.user_id": toID},
		},
	}
	update := bson.M{"$set": bson.M{
		"members.$[from].role": string(models.RoleMember),
		"members.$[to].role":   string(models.RoleAdmin),
	}}

	res, err := s.coll.UpdateOne(ctx, filter, update,
		options.UpdateOne().SetArrayFilters([]any{
			bson.M{"from.user_id": fromID},
			bson.M{"to.user_id": toID},
		}))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ports.ErrPrecondition
	}
	return nil
}
