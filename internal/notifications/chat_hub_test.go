package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogsphere/internal/models"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

type userLookupStub map[uuid.UUID]*models.User

func (s userLookupStub) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.New("record not found")
}

func newTestClient(t *testing.T, hub *ChatHub, username string) *Client {
	t.Helper()
	user := &models.User{ID: uuid.New(), Username: username, Email: username + "@example.com"}
	client := NewClient(hub, nil, user.ID, user.Author())
	require.NoError(t, hub.attach(client))
	return client
}

func recv(t *testing.T, c *Client) ChatEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev ChatEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(testEventuallyTimeout):
		t.Fatalf("no message for %s", c.Author.Username)
		return ChatEvent{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message for %s: %s", c.Author.Username, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChatHub_RegisterSendsWelcome(t *testing.T) {
	alice := &models.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com"}
	hub := NewChatHub(ChatHubConfig{Users: userLookupStub{alice.ID: alice}})

	client, err := hub.Register(context.Background(), alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.ClientCount())

	ev := recv(t, client)
	assert.Equal(t, EventWelcome, ev.Type)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, models.AvatarURL("alice@example.com"), ev.Avatar)

	_, err = hub.Register(context.Background(), uuid.New(), nil)
	assert.Error(t, err, "unknown users cannot chat")
	assert.Equal(t, 1, hub.ClientCount())

	hub.UnregisterClient(client)
	hub.UnregisterClient(client)
	assert.Zero(t, hub.ClientCount())
}

func TestChatHub_RelaysToOthersOnly(t *testing.T) {
	hub := NewChatHub(ChatHubConfig{})
	alice := newTestClient(t, hub, "alice")
	bob := newTestClient(t, hub, "bob")
	carol := newTestClient(t, hub, "carol")
	for _, c := range []*Client{alice, bob, carol} {
		recv(t, c) // welcome
	}

	hub.HandleIncoming(alice, []byte(`{"message":"  hi <b>there</b><script>x()</script> "}`))

	for _, c := range []*Client{bob, carol} {
		ev := recv(t, c)
		assert.Equal(t, EventChatMessage, ev.Type)
		assert.Equal(t, "hi there", ev.Message)
		assert.Equal(t, "alice", ev.Username)
		assert.Equal(t, alice.Author.Avatar, ev.Avatar)
	}
	assertSilent(t, alice)
}

func TestChatHub_DropsEmptyAndMalformedMessages(t *testing.T) {
	hub := NewChatHub(ChatHubConfig{})
	alice := newTestClient(t, hub, "alice")
	bob := newTestClient(t, hub, "bob")
	recv(t, alice)
	recv(t, bob)

	for _, raw := range []string{`not json`, `{"message":""}`, `{"message":"<i> </i>"}`, `{"message":42}`} {
		hub.HandleIncoming(alice, []byte(raw))
	}
	assertSilent(t, bob)
}

func TestChatHub_RelaysThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	newRDB := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return rdb
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Two instances sharing one Redis.
	hubA := NewChatHub(ChatHubConfig{Redis: newRDB()})
	hubB := NewChatHub(ChatHubConfig{Redis: newRDB()})
	require.NoError(t, hubA.Start(ctx))
	require.NoError(t, hubB.Start(ctx))

	alice := newTestClient(t, hubA, "alice")
	aliceOtherTab := newTestClient(t, hubA, "alice")
	bob := newTestClient(t, hubB, "bob")
	for _, c := range []*Client{alice, aliceOtherTab, bob} {
		recv(t, c)
	}

	hubA.HandleIncoming(alice, []byte(`{"message":"across instances"}`))

	assert.Equal(t, "across instances", recv(t, bob).Message)
	assert.Equal(t, "across instances", recv(t, aliceOtherTab).Message)
	assertSilent(t, alice)
}

func TestChatHub_RateLimitsPerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewChatHub(ChatHubConfig{Redis: rdb, RateLimit: 2, RateWindow: time.Minute})
	require.NoError(t, hub.Start(ctx))

	alice := newTestClient(t, hub, "alice")
	bob := newTestClient(t, hub, "bob")
	recv(t, alice)
	recv(t, bob)

	for i := 0; i < 3; i++ {
		hub.HandleIncoming(alice, []byte(`{"message":"spam"}`))
	}
	recv(t, bob)
	recv(t, bob)
	assertSilent(t, bob)
}

func TestChatHub_Shutdown(t *testing.T) {
	hub := NewChatHub(ChatHubConfig{})
	alice := newTestClient(t, hub, "alice")
	recv(t, alice)

	require.NoError(t, hub.Shutdown(context.Background()))
	assert.Zero(t, hub.ClientCount())

	_, open := <-alice.Send
	assert.False(t, open)

	// A pump exiting after shutdown must not close the channel twice.
	assert.NotPanics(t, func() { hub.UnregisterClient(alice) })
}

func TestNotifier_DisabledWithoutRedis(t *testing.T) {
	n := NewNotifier(nil)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.PublishChat(context.Background(), "x"))
	assert.NoError(t, n.StartChatSubscriber(context.Background(), func(string) {
		t.Fatal("no messages without redis")
	}))
}

func TestNotifier_StopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payloads := make(chan string, 4)
	require.NoError(t, n.StartChatSubscriber(ctx, func(p string) { payloads <- p }))

	require.NoError(t, n.PublishChat(context.Background(), "before-cancel"))
	assert.Eventually(t, func() bool {
		select {
		case p := <-payloads:
			return p == "before-cancel"
		default:
			return false
		}
	}, testEventuallyTimeout, testPollInterval)

	cancel()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.PublishChat(context.Background(), "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case p := <-payloads:
			return p == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, testPollInterval)
}
