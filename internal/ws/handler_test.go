package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/notify"
	"seatshare/internal/security"
	"seatshare/internal/service"
	"seatshare/internal/store/sqlite"
)

const testOrigin = "http://localhost:3000"

type wsFixture struct {
	srv    *httptest.Server
	hub    *Hub
	tokens *security.TokenService
	convs  *service.ConversationService
	store  *sqlite.Store
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	st := sqlite.NewStore(db)
	t.Cleanup(func() { _ = st.Close() })

	enc, err := security.NewEncryptor([]byte("test-key"), nil)
	require.NoError(t, err)
	convs := service.NewConversationService(st, enc, notify.Discard{}, zap.NewNop(), service.ConversationConfig{})
	tokens := security.NewTokenService("secret", time.Hour)
	hub := NewHub(zap.NewNop())

	srv := httptest.NewServer(MakeHandler(hub, tokens, st.Users(), convs, []string{testOrigin}, zap.NewNop()))
	t.Cleanup(srv.Close)
	return &wsFixture{srv: srv, hub: hub, tokens: tokens, convs: convs, store: st}
}

func (f *wsFixture) user(t *testing.T, id, name string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Email: id + "@example.com", DisplayName: name, HashedPassword: "x", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func (f *wsFixture) dial(t *testing.T, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

// connect dials as u and waits until the hub has registered the connection.
func (f *wsFixture) connect(t *testing.T, u *domain.User) *websocket.Conn {
	t.Helper()
	tok, err := f.tokens.CreateForUser(u.ID, u.DisplayName, u.Email)
	require.NoError(t, err)
	conn, _, err := f.dial(t, http.Header{
		"Origin":        {testOrigin},
		"Authorization": {"Bearer " + tok},
	})
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn)["type"])
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestHandshakeRejected(t *testing.T) {
	f := newWSFixture(t)
	u := f.user(t, "u1", "Una")
	tok, err := f.tokens.CreateForUser(u.ID, u.DisplayName, u.Email)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
		status int
	}{
		{"BadOrigin", http.Header{"Origin": {"https://evil.test"}, "Authorization": {"Bearer " + tok}}, http.StatusForbidden},
		{"NoToken", http.Header{"Origin": {testOrigin}}, http.StatusUnauthorized},
		{"BadToken", http.Header{"Origin": {testOrigin}, "Authorization": {"Bearer nope"}}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := f.dial(t, tt.header)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	t.Run("UnknownUser", func(t *testing.T) {
		ghost, err := f.tokens.CreateForUser("ghost", "Ghost", "")
		require.NoError(t, err)
		_, resp, err := f.dial(t, http.Header{"Origin": {testOrigin}, "Authorization": {"Bearer " + ghost}})
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestSubprotocolToken(t *testing.T) {
	f := newWSFixture(t)
	u := f.user(t, "u1", "Una")
	tok, err := f.tokens.CreateForUser(u.ID, u.DisplayName, u.Email)
	require.NoError(t, err)

	conn, _, err := f.dial(t, http.Header{
		"Origin":                 {testOrigin},
		"Sec-WebSocket-Protocol": {"bearer, " + tok},
	})
	require.NoError(t, err)
	assert.Equal(t, "bearer", conn.Subprotocol())
}

func TestMessagingOverSocket(t *testing.T) {
	f := newWSFixture(t)
	alice := f.user(t, "alice", "Alice")
	bob := f.user(t, "bob", "Bob")
	mallory := f.user(t, "mallory", "Mallory")
	conv, err := f.convs.FindOrCreate(context.Background(), alice.ID, bob.ID, nil)
	require.NoError(t, err)

	aConn := f.connect(t, alice)
	bConn := f.connect(t, bob)
	mConn := f.connect(t, mallory)
	assert.True(t, f.hub.Online(bob.ID))

	require.NoError(t, aConn.WriteJSON(map[string]any{"type": "typing", "conversation_id": conv.ID}))
	typing := readFrame(t, bConn)
	assert.Equal(t, "typing", typing["type"])
	assert.Equal(t, "Alice", typing["display_name"])

	require.NoError(t, aConn.WriteJSON(map[string]any{"type": "message", "conversation_id": conv.ID, "content": "hi bob"}))
	for _, c := range []*websocket.Conn{aConn, bConn} {
		frame := readFrame(t, c)
		assert.Equal(t, "message", frame["type"])
		assert.Equal(t, "hi bob", frame["content"])
		assert.Equal(t, "Alice", frame["sender_name"])
	}

	got, err := f.convs.GetConversation(context.Background(), conv.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadCount[bob.ID])

	require.NoError(t, bConn.WriteJSON(map[string]any{"type": "mark_read", "conversation_id": conv.ID}))
	read := readFrame(t, aConn)
	assert.Equal(t, "messages_read", read["type"])
	assert.Equal(t, bob.ID, read["user_id"])

	require.NoError(t, mConn.WriteJSON(map[string]any{"type": "message", "conversation_id": conv.ID, "content": "let me in"}))
	denied := readFrame(t, mConn)
	assert.Equal(t, "error", denied["type"])

	require.NoError(t, aConn.WriteJSON(map[string]any{"type": "message", "conversation_id": conv.ID, "content": "   "}))
	assert.Equal(t, "error", readFrame(t, aConn)["type"])
}

func TestHubDeliver(t *testing.T) {
	f := newWSFixture(t)
	u := f.user(t, "u1", "Una")
	conn := f.connect(t, u)

	require.NoError(t, f.hub.Deliver(context.Background(), domain.Event{
		ID:         "e1",
		Type:       domain.EventSeatApproved,
		Recipients: []string{u.ID, "offline"},
	}))

	frame := readFrame(t, conn)
	assert.Equal(t, "notification", frame["type"])
	event, ok := frame["event"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(domain.EventSeatApproved), event["type"])
}
