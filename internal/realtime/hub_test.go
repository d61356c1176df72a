package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/binsarkiel/chatto/internal/models"
)

type stubChat struct {
	history []models.Message
	err     error
	sent    []string
}

func (s *stubChat) JoinConversation(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	return s.history, s.err
}

func (s *stubChat) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, content)
	return &models.Message{ConversationID: conversationID, SenderID: senderID, Content: content}, nil
}

type stubAuth struct {
	user *models.User
	err  error
}

func (s *stubAuth) ValidateToken(ctx context.Context, token string) (*models.User, error) {
	return s.user, s.err
}

func newTestClient(h *Hub, userID string) *Client {
	return &Client{
		Hub:    h,
		Send:   make(chan []byte, 8),
		UserID: userID,
		Rooms:  make(map[Room]bool),
	}
}

func receiveEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.Send:
		var ev Event
		assert.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	default:
		t.Fatal("expected a pending event")
		return Event{}
	}
}

func TestHub_JoinAndLeaveBookkeeping(t *testing.T) {
	h := NewHub(&stubChat{}, &stubAuth{}, slog.Default())
	c := newTestClient(h, "u1")

	room := ConversationRoom("c1")
	assert.False(t, h.IsUserInRoom(room, "u1"))

	h.Join(c, room)
	assert.True(t, h.IsUserInRoom(room, "u1"))
	assert.True(t, c.Rooms[room])

	h.Leave(c, room)
	assert.False(t, h.IsUserInRoom(room, "u1"))
	assert.False(t, c.Rooms[room])
}

func TestHub_BroadcastTargetsOnlyTheRoom(t *testing.T) {
	h := NewHub(&stubChat{}, &stubAuth{}, slog.Default())

	inRoom := newTestClient(h, "u1")
	outOfRoom := newTestClient(h, "u2")
	h.Join(inRoom, ConversationRoom("c1"))
	h.Join(outOfRoom, ConversationRoom("c2"))

	h.NotifyConversation("c1", Event{Type: "message", Data: map[string]any{"content": "hi"}})

	ev := receiveEvent(t, inRoom)
	assert.Equal(t, "message", ev.Type)
	assert.Empty(t, outOfRoom.Send)
}

func TestHub_NotifyUserReachesEverySocket(t *testing.T) {
	h := NewHub(&stubChat{}, &stubAuth{}, slog.Default())

	// Same user on two devices.
	first := newTestClient(h, "u1")
	second := newTestClient(h, "u1")
	h.Join(first, UserRoom("u1"))
	h.Join(second, UserRoom("u1"))

	h.NotifyUser("u1", Event{Type: "new_chat"})

	assert.Equal(t, "new_chat", receiveEvent(t, first).Type)
	assert.Equal(t, "new_chat", receiveEvent(t, second).Type)
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	h := NewHub(&stubChat{}, &stubAuth{}, slog.Default())

	slow := newTestClient(h, "u1")
	slow.Send = make(chan []byte) // no buffer, nothing reading
	h.Join(slow, ConversationRoom("c1"))

	h.NotifyConversation("c1", Event{Type: "message"})

	assert.False(t, h.IsUserInRoom(ConversationRoom("c1"), "u1"))
	_, open := <-slow.Send
	assert.False(t, open)
}

func TestClient_JoinRequiresIdentify(t *testing.T) {
	h := NewHub(&stubChat{}, &stubAuth{}, slog.Default())
	c := newTestClient(h, "")

	c.handleJoin("c1")

	ev := receiveEvent(t, c)
	assert.Equal(t, "error", ev.Type)
	data := ev.Data.(map[string]any)
	assert.Equal(t, "not authenticated", data["message"])
	assert.False(t, h.IsUserInRoom(ConversationRoom("c1"), ""))
}

func TestClient_SendRequiresIdentify(t *testing.T) {
	chat := &stubChat{}
	h := NewHub(chat, &stubAuth{}, slog.Default())
	c := newTestClient(h, "")

	c.handleSend("c1", "hello")

	ev := receiveEvent(t, c)
	assert.Equal(t, "error", ev.Type)
	assert.Empty(t, chat.sent)
}

func TestClient_IdentifyThenJoin(t *testing.T) {
	chat := &stubChat{history: []models.Message{{ID: "m1", ConversationID: "c1", Content: "hi"}}}
	auth := &stubAuth{user: &models.User{ID: "u1", Username: "alice"}}
	h := NewHub(chat, auth, slog.Default())
	c := newTestClient(h, "")

	c.handleIdentify("valid-token")
	assert.Equal(t, "u1", c.UserID)
	assert.True(t, h.IsUserInRoom(UserRoom("u1"), "u1"))
	assert.Equal(t, "identified", receiveEvent(t, c).Type)

	c.handleJoin("c1")
	assert.True(t, h.IsUserInRoom(ConversationRoom("c1"), "u1"))
	assert.Equal(t, "chat_history", receiveEvent(t, c).Type)
}

type stubGauge struct {
	n atomic.Int64
}

func (g *stubGauge) Inc() { g.n.Add(1) }
func (g *stubGauge) Dec() { g.n.Add(-1) }

func TestHub_ConnectionGaugeTracksSockets(t *testing.T) {
	h := NewHub(&stubChat{}, &stubAuth{}, slog.Default())
	gauge := &stubGauge{}
	h.SetConnectionGauge(gauge)
	go h.Run()

	c := newTestClient(h, "u1")
	h.Register <- c
	assert.Eventually(t, func() bool { return gauge.n.Load() == 1 }, time.Second, 5*time.Millisecond)

	h.Unregister <- c
	assert.Eventually(t, func() bool { return gauge.n.Load() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClient_ReidentifyLeavesPreviousUserRoom(t *testing.T) {
	auth := &stubAuth{user: &models.User{ID: "u1", Username: "alice"}}
	h := NewHub(&stubChat{}, auth, slog.Default())
	c := newTestClient(h, "")

	c.handleIdentify("alice-token")
	assert.True(t, h.IsUserInRoom(UserRoom("u1"), "u1"))
	receiveEvent(t, c)
	h.Join(c, ConversationRoom("c1"))

	auth.user = &models.User{ID: "u2", Username: "bob"}
	c.handleIdentify("bob-token")
	receiveEvent(t, c)

	// The socket now belongs to u2 only; u1's notifications no longer land
	// and rooms joined under the old identity are gone.
	assert.Equal(t, "u2", c.UserID)
	assert.False(t, h.IsUserInRoom(UserRoom("u1"), "u1"))
	assert.False(t, h.IsUserInRoom(ConversationRoom("c1"), "u2"))
	assert.True(t, h.IsUserInRoom(UserRoom("u2"), "u2"))

	h.NotifyUser("u1", Event{Type: "new_chat"})
	assert.Empty(t, c.Send)

	h.NotifyUser("u2", Event{Type: "new_chat"})
	assert.Equal(t, "new_chat", receiveEvent(t, c).Type)
}

func TestClient_IdentifyRejectsBadToken(t *testing.T) {
	auth := &stubAuth{err: assert.AnError}
	h := NewHub(&stubChat{}, auth, slog.Default())
	c := newTestClient(h, "")

	c.handleIdentify("garbage")

	assert.Empty(t, c.UserID)
	ev := receiveEvent(t, c)
	assert.Equal(t, "error", ev.Type)
}
