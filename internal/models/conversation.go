package models

import "time"

type ConversationKind string

const (
	KindDirect ConversationKind = "direct"
	KindGroup  ConversationKind = "group"
)

type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

type Member struct {
	UserID   string     `json:"user_id"`
	Username string     `json:"username"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}

type Conversation struct {
	ID          string           `json:"id"`
	Kind        ConversationKind `json:"kind"`
	Name        string           `json:"name,omitempty"`
	Description string           `json:"description,omitempty"`
	CreatedBy   string           `json:"created_by,omitempty"`
	Members     []Member         `json:"members"`
	// LastActivity is nil until the first message and tracks the newest
	// message timestamp afterwards.
	LastActivity *time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (c *Conversation) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (c *Conversation) MemberRole(userID string) (MemberRole, bool) {
	for _, m := range c.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

func (c *Conversation) AdminCount() int {
	var n int
	for _, m := range c.Members {
		if m.Role == RoleAdmin {
			n++
		}
	}
	return n
}

func (c *Conversation) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// DirectKey normalizes an unordered user pair into the key the stores use to
// keep direct conversations unique per pair.
func DirectKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// ConversationSummary is a conversation annotated for list views.
type ConversationSummary struct {
	Conversation
	LatestMessage *Message `json:"latest_message,omitempty"`
	UnreadCount   int      `json:"unread_count"`
}
