package models

import "time"

type ReadReceipt struct {
	UserID string     `json:"user_id"`
	Read   bool       `json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	SenderID       string        `json:"sender_id"`
	SenderName     string        `json:"sender_username,omitempty"`
	Content        string        `json:"content"`
	CreatedAt      time.Time     `json:"created_at"`
	ReadBy         []ReadReceipt `json:"read_status,omitempty"`
}
