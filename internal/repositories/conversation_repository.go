package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	_ "embed"

	"github.com/google/uuid"

	"github.com/binsarkiel/chatto/internal/models"
	"github.com/binsarkiel/chatto/internal/ports"
)

//go:embed migrations/002_create_conversations_table_up.sql
var createConversationsTableQuery string

//go:embed migrations/003_create_conversation_members_up.sql
var createConversationMembersQuery string

type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewConversationRepository(db *sql.DB, logger *slog.Logger) (*ConversationRepository, error) {
	repo := ConversationRepository{db: db, logger: logger}
	if _, err := repo.db.Exec(createConversationsTableQuery); err != nil {
		return nil, err
	}
	if _, err := repo.db.Exec(createConversationMembersQuery); err != nil {
		return nil, err
	}
	return &repo, nil
}

// FindOrCreateDirect relies on the unique index over direct_key so that two
// concurrent calls for the same pair cannot both insert.
func (r *ConversationRepository) FindOrCreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, bool, error) {
	directKey := models.DirectKey(userA, userB)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO conversations (id, kind, direct_key) VALUES ($1, 'direct', $2)
		 ON CONFLICT (direct_key) DO NOTHING
		 RETURNING id`,
		uuid.New().String(), directKey).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		// Lost the race or the pair already chatted; return the winner.
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		var existingID string
		err := r.db.QueryRowContext(ctx,
			"SELECT id FROM conversations WHERE direct_key = $1", directKey).Scan(&existingID)
		if err != nil {
			return nil, false, err
		}
		conversation, err := r.GetByID(ctx, existingID)
		return conversation, false, err
	case err != nil:
		return nil, false, err
	}

	for _, member := range []string{userA, userB} {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO conversation_members (conversation_id, user_id, role) VALUES ($1, $2, 'member')",
			id, member)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	conversation, err := r.GetByID(ctx, id)
	return conversation, true, err
}

func (r *ConversationRepository) CreateGroup(ctx context.Context, creatorID, name, description string) (*models.Conversation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		"INSERT INTO conversations (id, kind, name, description, created_by) VALUES ($1, 'group', $2, $3, $4)",
		id, name, description, creatorID)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO conversation_members (conversation_id, user_id, role) VALUES ($1, $2, 'admin')",
		id, creatorID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	var name, description, createdBy sql.NullString
	var lastActivity sql.NullTime

	err := r.db.QueryRowContext(ctx,
		"SELECT id, kind, name, description, created_by, last_activity, created_at FROM conversations WHERE id = $1", id).
		Scan(&conversation.ID, &conversation.Kind, &name, &description, &createdBy, &lastActivity, &conversation.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	conversation.Name = name.String
	conversation.Description = description.String
	conversation.CreatedBy = createdBy.String
	if lastActivity.Valid {
		t := lastActivity.Time
		conversation.LastActivity = &t
	}

	members, err := r.loadMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	conversation.Members = members

	return &conversation, nil
}

func (r *ConversationRepository) loadMembers(ctx context.Context, conversationID string) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cm.user_id, u.username, cm.role, cm.joined_at
		 FROM conversation_members cm
		 JOIN users u ON u.id = cm.user_id
		 WHERE cm.conversation_id = $1
		 ORDER BY cm.joined_at, cm.user_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var member models.Member
		if err := rows.Scan(&member.UserID, &member.Username, &member.Role, &member.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id, c.kind, c.name, c.description, c.created_by, c.last_activity, c.created_at,
			lm.id, lm.sender_id, lm.username, lm.content, lm.created_at,
			(SELECT COUNT(*)
			 FROM message_status ms
			 JOIN messages m ON m.id = ms.message_id
			 WHERE m.conversation_id = c.id AND ms.user_id = $1 AND NOT ms.is_read) AS unread_count
		FROM conversations c
		JOIN conversation_members me ON me.conversation_id = c.id AND me.user_id = $1
		LEFT JOIN LATERAL (
			SELECT m.id, m.sender_id, u.username, m.content, m.created_at
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.conversation_id = c.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) lm ON TRUE
		ORDER BY c.last_activity DESC NULLS LAST, c.id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		var name, description, createdBy sql.NullString
		var lastActivity sql.NullTime
		var msgID, msgSender, msgSenderName, msgContent sql.NullString
		var msgCreatedAt sql.NullTime

		err := rows.Scan(&s.ID, &s.Kind, &name, &description, &createdBy, &lastActivity, &s.CreatedAt,
			&msgID, &msgSender, &msgSenderName, &msgContent, &msgCreatedAt,
			&s.UnreadCount)
		if err != nil {
			return nil, err
		}

		s.Name = name.String
		s.Description = description.String
		s.CreatedBy = createdBy.String
		if lastActivity.Valid {
			t := lastActivity.Time
			s.LastActivity = &t
		}
		if msgID.Valid {
			s.LatestMessage = &models.Message{
				ID:             msgID.String,
				ConversationID: s.ID,
				SenderID:       msgSender.String,
				SenderName:     msgSenderName.String,
				Content:        msgContent.String,
				CreatedAt:      msgCreatedAt.Time,
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		members, err := r.loadMembers(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].Members = members
	}

	return summaries, nil
}

func (r *ConversationRepository) AddMember(ctx context.Context, conversationID, userID string, role models.MemberRole) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO conversation_members (conversation_id, user_id, role) VALUES ($1, $2, $3)",
		conversationID, userID, role)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return err
	}
	return nil
}

// RemoveMemberGuarded deletes the membership row only when doing so leaves at
// least one admin behind; the guard runs inside the statement so concurrent
// removals cannot strip the last admin.
func (r *ConversationRepository) RemoveMemberGuarded(ctx context.Context, conversationID, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM conversation_members cm
		 WHERE cm.conversation_id = $1 AND cm.user_id = $2
		   AND NOT (cm.role = 'admin' AND
		            (SELECT COUNT(*) FROM conversation_members
		             WHERE conversation_id = $1 AND role = 'admin') = 1)`,
		conversationID, userID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)",
			conversationID, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return ports.ErrNotFound
		}
		return ports.ErrPrecondition
	}
	return nil
}

// TransferAdmin flips both roles in one statement so no reader ever observes a
// group without an admin mid-transfer.
func (r *ConversationRepository) TransferAdmin(ctx context.Context, conversationID, fromID, toID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversation_members
		 SET role = CASE WHEN user_id = $3 THEN 'admin' ELSE 'member' END
		 WHERE conversation_id = $1 AND user_id IN ($2, $3)`,
		conversationID, fromID, toID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 2 {
		return ports.ErrPrecondition
	}
	return nil
}
