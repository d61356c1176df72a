package repositories

import (
	"context"
	"database/sql"
	"log/slog"

	_ "embed"

	"github.com/google/uuid"

	"github.com/binsarkiel/chatto/internal/models"
)

//go:embed migrations/004_create_messages_table_up.sql
var createMessagesTableQuery string

//go:embed migrations/005_create_message_status_up.sql
var createMessageStatusQuery string

type MessageRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMessageRepository(db *sql.DB, logger *slog.Logger) (*MessageRepository, error) {
	repo := MessageRepository{db: db, logger: logger}
	if _, err := repo.db.Exec(createMessagesTableQuery); err != nil {
		return nil, err
	}
	if _, err := repo.db.Exec(createMessageStatusQuery); err != nil {
		return nil, err
	}
	return &repo, nil
}

func (r *MessageRepository) Append(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	message := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}

	err = tx.QueryRowContext(ctx,
		"INSERT INTO messages (id, conversation_id, sender_id, content) VALUES ($1, $2, $3, $4) RETURNING created_at",
		message.ID, conversationID, senderID, content).Scan(&message.CreatedAt)
	if err != nil {
		return nil, err
	}

	// GREATEST keeps last_activity monotonic even if clocks skew between
	// concurrent writers.
	_, err = tx.ExecContext(ctx,
		`UPDATE conversations
		 SET last_activity = GREATEST(COALESCE(last_activity, 'epoch'::timestamptz), $2)
		 WHERE id = $1`,
		conversationID, message.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO message_status (message_id, user_id)
		 SELECT $1, user_id FROM conversation_members
		 WHERE conversation_id = $2 AND user_id <> $3`,
		message.ID, conversationID, senderID)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, "SELECT username FROM users WHERE id = $1", senderID).
		Scan(&message.SenderName)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &message, nil
}

func (r *MessageRepository) GetMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, u.username, m.content, m.created_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.conversation_id = $1
		 ORDER BY m.created_at, m.id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	index := make(map[string]int)
	for rows.Next() {
		var message models.Message
		message.ConversationID = conversationID
		err := rows.Scan(&message.ID, &message.SenderID, &message.SenderName, &message.Content, &message.CreatedAt)
		if err != nil {
			return nil, err
		}
		index[message.ID] = len(messages)
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statusRows, err := r.db.QueryContext(ctx,
		`SELECT ms.message_id, ms.user_id, ms.is_read, ms.read_at
		 FROM message_status ms
		 JOIN messages m ON m.id = ms.message_id
		 WHERE m.conversation_id = $1`, conversationID)
	if err != nil {
		return nil, err
	}
	defer statusRows.Close()

	for statusRows.Next() {
		var messageID string
		var receipt models.ReadReceipt
		var readAt sql.NullTime
		if err := statusRows.Scan(&messageID, &receipt.UserID, &receipt.Read, &readAt); err != nil {
			return nil, err
		}
		if readAt.Valid {
			t := readAt.Time
			receipt.ReadAt = &t
		}
		if i, ok := index[messageID]; ok {
			messages[i].ReadBy = append(messages[i].ReadBy, receipt)
		}
	}

	return messages, statusRows.Err()
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE message_status ms
		 SET is_read = TRUE, read_at = now()
		 FROM messages m
		 WHERE ms.message_id = m.id
		   AND m.conversation_id = $1
		   AND ms.user_id = $2
		   AND NOT ms.is_read`,
		conversationID, userID)
	return err
}
