package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"blogsphere/internal/middleware"
	"blogsphere/internal/models"
	"blogsphere/internal/observability"
	"blogsphere/internal/sanitize"
)

// Max total chat connections per instance.
const maxTotalConns = 10000

// Event types sent to chat clients.
const (
	EventWelcome     = "welcome"
	EventChatMessage = "chatMessageFromServer"
)

var errConnLimit = errors.New("server connection limit reached")

// UserLookup resolves the author shown next to a user's chat messages.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ChatEvent is the JSON frame sent to chat clients.
type ChatEvent struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// relayEnvelope is what travels between instances. Origin is the sending
// connection, which never receives its own message back.
type relayEnvelope struct {
	Origin string    `json:"origin"`
	Event  ChatEvent `json:"event"`
}

// incomingChat is the frame clients send.
type incomingChat struct {
	Message string `json:"message"`
}

// ChatHubConfig configures a ChatHub. Redis is optional; without it chat is
// relayed only between clients of this instance and is not rate limited.
type ChatHubConfig struct {
	Redis      *redis.Client
	RateLimit  int
	RateWindow time.Duration
	Users      UserLookup
}

// ChatHub relays chat messages between every connected client.
type ChatHub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	users      UserLookup
	notifier   *Notifier
	rdb        *redis.Client
	rateLimit  int
	rateWindow time.Duration
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// NewChatHub creates a new ChatHub instance
func NewChatHub(cfg ChatHubConfig) *ChatHub {
	window := cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	return &ChatHub{
		clients:    make(map[*Client]struct{}),
		users:      cfg.Users,
		notifier:   NewNotifier(cfg.Redis),
		rdb:        cfg.Redis,
		rateLimit:  cfg.RateLimit,
		rateWindow: window,
	}
}

// Start subscribes to the Redis relay channel when Redis is configured.
func (h *ChatHub) Start(ctx context.Context) error {
	return h.notifier.StartChatSubscriber(ctx, h.deliverPayload)
}

// Register attaches a connection for userID and greets it.
func (h *ChatHub) Register(ctx context.Context, userID uuid.UUID, conn *websocket.Conn) (*Client, error) {
	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load chat user %s: %w", userID, err)
	}
	client := NewClient(h, conn, userID, user.Author())
	if err := h.attach(client); err != nil {
		return nil, err
	}
	return client, nil
}

func (h *ChatHub) attach(client *Client) error {
	h.mu.Lock()
	if len(h.clients) >= maxTotalConns {
		h.mu.Unlock()
		return errConnLimit
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	observability.ChatConnections.Inc()
	client.IncomingHandler = h.HandleIncoming

	welcome, err := json.Marshal(ChatEvent{
		Type:     EventWelcome,
		Username: client.Author.Username,
		Avatar:   client.Author.Avatar,
	})
	if err == nil {
		client.TrySend(welcome)
	}
	return nil
}

// UnregisterClient removes client and closes its send channel.
func (h *ChatHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.Send)
	}
	h.mu.Unlock()

	if ok {
		observability.ChatConnections.Dec()
	}
}

// Serve runs an authenticated websocket connection until it closes.
func (h *ChatHub) Serve(conn *websocket.Conn) {
	userID, _ := conn.Locals(middleware.UserIDLocal).(uuid.UUID)
	client, err := h.Register(context.Background(), userID, conn)
	if err != nil {
		observability.Logger.Warn("chat registration failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "chat unavailable"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump()
}

// HandleIncoming strips markup from a client's message and relays it to
// every other connection.
func (h *ChatHub) HandleIncoming(client *Client, raw []byte) {
	observability.ChatMessages.WithLabelValues("inbound").Inc()

	var in incomingChat
	if err := json.Unmarshal(raw, &in); err != nil {
		observability.ChatMessages.WithLabelValues("dropped").Inc()
		return
	}
	text := strings.TrimSpace(sanitize.Strict(in.Message))
	if text == "" {
		observability.ChatMessages.WithLabelValues("dropped").Inc()
		return
	}

	ctx := context.Background()
	if !h.allow(ctx, client) {
		observability.ChatMessages.WithLabelValues("dropped").Inc()
		return
	}

	env := relayEnvelope{
		Origin: client.ID,
		Event: ChatEvent{
			Type:     EventChatMessage,
			Message:  text,
			Username: client.Author.Username,
			Avatar:   client.Author.Avatar,
		},
	}

	if !h.notifier.Enabled() {
		h.deliver(env)
		return
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := h.notifier.PublishChat(ctx, string(payload)); err != nil {
		observability.Logger.Warn("chat relay through redis failed, delivering locally",
			slog.String("error", err.Error()))
		h.deliver(env)
	}
}

// allow applies the per-user chat rate limit. Redis failures let the
// message through.
func (h *ChatHub) allow(ctx context.Context, client *Client) bool {
	if h.rdb == nil || h.rateLimit <= 0 {
		return true
	}
	ok, err := middleware.CheckRateLimit(ctx, h.rdb, "chat", "user:"+client.UserID.String(), h.rateLimit, h.rateWindow)
	if err != nil {
		return true
	}
	return ok
}

func (h *ChatHub) deliverPayload(payload string) {
	var env relayEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		observability.Logger.Warn("invalid chat relay payload", slog.String("error", err.Error()))
		return
	}
	h.deliver(env)
}

// deliver sends env's event to every local client except its origin.
func (h *ChatHub) deliver(env relayEnvelope) {
	data, err := json.Marshal(env.Event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.ID == env.Origin {
			continue
		}
		c.TrySend(data)
		observability.ChatMessages.WithLabelValues("relayed").Inc()
	}
}

// ClientCount returns the number of connections on this instance.
func (h *ChatHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every client's send queue; each write pump then sends a
// close frame and closes its connection.
func (h *ChatHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.Send)
		observability.ChatConnections.Dec()
	}
	return nil
}
