// Package realtime fans events out to connected websockets. Rooms are keyed
// by typed (kind, id) pairs: one room per user and one per conversation.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/binsarkiel/chatto/internal/ports"
)

type RoomKind string

const (
	RoomUser         RoomKind = "user"
	RoomConversation RoomKind = "conversation"
)

type Room struct {
	Kind RoomKind
	ID   string
}

func UserRoom(userID string) Room {
	return Room{Kind: RoomUser, ID: userID}
}

func ConversationRoom(conversationID string) Room {
	return Room{Kind: RoomConversation, ID: conversationID}
}

// Event is the server-to-client envelope.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// inbound is the client-to-server envelope. join_group and send_group_message
// are aliases kept for the group-aware client.
type inbound struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	// UserID is empty until the socket completes the identify step.
	UserID string
	Rooms  map[Room]bool
}

// ConnectionGauge is the slice of a prometheus gauge the hub needs to track
// open sockets.
type ConnectionGauge interface {
	Inc()
	Dec()
}

type Hub struct {
	Register   chan *Client
	Unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[Room]map[*Client]bool

	chat        ports.IChatEvents
	auth        ports.ITokenValidator
	connections ConnectionGauge
	logger      *slog.Logger
}

func NewHub(chat ports.IChatEvents, auth ports.ITokenValidator, logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		rooms:      make(map[Room]map[*Client]bool),
		chat:       chat,
		auth:       auth,
		logger:     logger,
	}
}

// SetConnectionGauge attaches a gauge tracking open sockets. Call before Run.
func (h *Hub) SetConnectionGauge(gauge ConnectionGauge) {
	h.connections = gauge
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			if client.Rooms == nil {
				client.Rooms = make(map[Room]bool)
			}
			if h.connections != nil {
				h.connections.Inc()
			}
			h.mu.Unlock()
			h.logger.Info("client registered", "userID", client.UserID)

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			h.logger.Info("client unregistered", "userID", client.UserID)
		}
	}
}

// dropLocked removes a client from every room and closes its send channel.
// Callers hold h.mu.
func (h *Hub) dropLocked(client *Client) {
	for room := range client.Rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	if _, ok := h.clients[client]; ok && h.connections != nil {
		h.connections.Dec()
	}
	delete(h.clients, client)
	close(client.Send)
}

func (h *Hub) Join(client *Client, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.Rooms[room] = true
	h.logger.Debug("client joined room", "userID", client.UserID, "kind", room.Kind, "roomID", room.ID)
}

// Identify binds the socket to a user. The write to UserID happens under the
// registry lock so it is ordered against IsUserInRoom; a socket that
// re-identifies as a different user leaves every room held under the old
// identity first.
func (h *Hub) Identify(client *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.UserID != "" && client.UserID != userID {
		for room := range client.Rooms {
			if members, ok := h.rooms[room]; ok {
				delete(members, client)
				if len(members) == 0 {
					delete(h.rooms, room)
				}
			}
			delete(client.Rooms, room)
		}
	}

	client.UserID = userID

	room := UserRoom(userID)
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.Rooms[room] = true
}

func (h *Hub) Leave(client *Client, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.Rooms, room)
}

// IsUserInRoom reports whether any of the user's sockets has joined the room.
func (h *Hub) IsUserInRoom(room Room, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

func (h *Hub) BroadcastToRoom(room Room, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[room] {
		select {
		case client.Send <- data:
			h.logger.Debug("event sent", "userID", client.UserID, "type", event.Type)
		default:
			// Slow consumer; delivery is best-effort, the client recovers
			// from the store on reconnect.
			h.logger.Warn("client channel full, dropping connection", "userID", client.UserID)
			h.dropLocked(client)
		}
	}
}

func (h *Hub) NotifyUser(userID string, event Event) {
	h.BroadcastToRoom(UserRoom(userID), event)
}

func (h *Hub) NotifyConversation(conversationID string, event Event) {
	h.BroadcastToRoom(ConversationRoom(conversationID), event)
}

func (c *Client) send(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.send(Event{Type: "error", Data: map[string]any{"message": message}})
}

func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("websocket error", "error", err)
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.Hub.logger.Error("failed to parse message", "error", err)
			c.sendError("invalid message format")
			continue
		}

		c.Hub.logger.Debug("processing event", "type", msg.Type, "userID", c.UserID)

		switch msg.Type {
		case "identify":
			c.handleIdentify(msg.Token)
		case "join_chat", "join_group":
			c.handleJoin(msg.ConversationID)
		case "leaveChat", "leave_chat":
			c.Hub.Leave(c, ConversationRoom(msg.ConversationID))
		case "send_chat_message", "send_group_message":
			c.handleSend(msg.ConversationID, msg.Content)
		default:
			c.sendError("unknown event type")
		}
	}
}

func (c *Client) handleIdentify(token string) {
	user, err := c.Hub.auth.ValidateToken(context.Background(), token)
	if err != nil {
		c.Hub.logger.Warn("socket identify failed", "error", err)
		c.sendError("authentication failed")
		return
	}

	c.Hub.Identify(c, user.ID)
	c.send(Event{Type: "identified", Data: user.Public()})
	c.Hub.logger.Info("socket identified", "userID", user.ID)
}

func (c *Client) handleJoin(conversationID string) {
	if c.UserID == "" {
		c.sendError("not authenticated")
		return
	}

	// Membership is re-verified against the store at join time; it may have
	// changed since the last page load.
	history, err := c.Hub.chat.JoinConversation(context.Background(), conversationID, c.UserID)
	if err != nil {
		c.Hub.logger.Warn("join rejected", "userID", c.UserID, "conversationID", conversationID, "error", err)
		c.sendError(err.Error())
		return
	}

	c.Hub.Join(c, ConversationRoom(conversationID))
	c.send(Event{Type: "chat_history", Data: map[string]any{
		"conversation_id": conversationID,
		"messages":        history,
	}})
}

func (c *Client) handleSend(conversationID, content string) {
	if c.UserID == "" {
		c.sendError("not authenticated")
		return
	}

	// Persist first; the service fans the message out on success.
	if _, err := c.Hub.chat.SendMessage(context.Background(), conversationID, c.UserID, content); err != nil {
		c.Hub.logger.Warn("send rejected", "userID", c.UserID, "conversationID", conversationID, "error", err)
		c.sendError(err.Error())
	}
}

func (c *Client) WritePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
