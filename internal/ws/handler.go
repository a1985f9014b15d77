package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/logger"
	"seatshare/internal/security"
)

const maxFrameBytes = 64 << 10

// Conversations is the part of the conversation service the socket needs.
type Conversations interface {
	GetConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// inbound is a client frame. Unused fields stay empty.
type inbound struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// originPolicy accepts scheme://host origins from the configured CORS list.
type originPolicy map[string]struct{}

func newOriginPolicy(origins []string) originPolicy {
	p := make(originPolicy, len(origins))
	for _, o := range origins {
		if key := originKey(o); key != "" {
			p[key] = struct{}{}
		}
	}
	return p
}

func originKey(raw string) string {
	u, err := url.Parse(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func (p originPolicy) allows(r *http.Request) bool {
	key := originKey(r.Header.Get("Origin"))
	if key == "" {
		return false
	}
	_, ok := p[key]
	return ok
}

var errNoToken = errors.New("missing bearer token")

// bearerToken reads the token from the Authorization header, or from the
// "bearer, <token>" subprotocol pair browsers can set.
func bearerToken(r *http.Request) (string, error) {
	if scheme, tok, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " "); ok &&
		strings.EqualFold(scheme, "bearer") && strings.TrimSpace(tok) != "" {
		return strings.TrimSpace(tok), nil
	}
	protos := websocket.Subprotocols(r)
	if len(protos) >= 2 && strings.EqualFold(protos[0], "bearer") && protos[1] != "" {
		return protos[1], nil
	}
	return "", errNoToken
}

// MakeHandler returns the /ws endpoint. Callers are authenticated before the
// upgrade. Once connected they receive notification events from the hub and
// may send:
//   - message    -> store the message and push it to both participants
//   - mark_read  -> reset the caller's unread counter, tell the other side
//   - typing     -> forward a typing indicator to the other participant
//   - ping       -> pong
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	users UserLookup,
	convs Conversations,
	allowedOrigins []string,
	log *zap.Logger,
) http.HandlerFunc {
	log = log.Named("ws")
	origins := newOriginPolicy(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin:  origins.allows,
		Subprotocols: []string{"bearer"},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !origins.allows(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}
		raw, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		ctx := logger.WithUserID(r.Context(), claims.UserID())
		user, err := users.GetByID(ctx, claims.UserID())
		if err != nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxFrameBytes)

		s := &session{
			ctx:   ctx,
			hub:   hub,
			convs: convs,
			user:  user,
			log:   logger.WithContext(ctx, log),
		}
		s.client = hub.Register(user.ID, conn)
		defer hub.Unregister(user.ID, s.client)
		s.log.Debug("connected")

		for {
			var in inbound
			if err := conn.ReadJSON(&in); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Debug("read failed", zap.Error(err))
				}
				return
			}
			s.handle(in)
		}
	}
}

// session is one authenticated socket.
type session struct {
	ctx    context.Context
	hub    *Hub
	convs  Conversations
	user   *domain.User
	client *client
	log    *zap.Logger
}

func (s *session) handle(in inbound) {
	switch in.Type {
	case "message":
		s.sendMessage(in)
	case "mark_read":
		s.markRead(in)
	case "typing":
		s.typing(in)
	case "ping":
		_ = s.client.writeJSON(map[string]any{"type": "pong"})
	default:
		s.log.Debug("unknown frame type", zap.String("type", in.Type))
	}
}

// conversation loads the conversation and reports an error frame when the
// caller may not use it.
func (s *session) conversation(id string) (*domain.Conversation, bool) {
	conv, err := s.convs.GetConversation(s.ctx, id, s.user.ID)
	if err != nil {
		s.fail("not allowed for this conversation")
		return nil, false
	}
	return conv, true
}

func (s *session) sendMessage(in inbound) {
	if in.ConversationID == "" || strings.TrimSpace(in.Content) == "" {
		s.fail("message requires conversation_id and non-empty content")
		return
	}
	conv, ok := s.conversation(in.ConversationID)
	if !ok {
		return
	}
	msg, err := s.convs.SendMessage(s.ctx, conv.ID, s.user.ID, in.Content)
	if err != nil {
		s.log.Warn("send message failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		if errors.Is(err, domain.ErrValidation) {
			s.fail(domain.ValidationDetail(err))
		} else {
			s.fail("failed to send message")
		}
		return
	}
	s.hub.BroadcastToUsers(conv.Participants[:], map[string]any{
		"type":            "message",
		"conversation_id": msg.ConversationID,
		"message_id":      msg.ID,
		"content":         msg.Content,
		"sender_id":       msg.SenderID,
		"sender_name":     conv.ParticipantNames[msg.SenderID],
		"timestamp":       msg.CreatedAt,
		"is_read":         false,
	})
}

func (s *session) markRead(in inbound) {
	if in.ConversationID == "" {
		return
	}
	conv, ok := s.conversation(in.ConversationID)
	if !ok {
		return
	}
	if err := s.convs.MarkRead(s.ctx, conv.ID, s.user.ID); err != nil {
		s.log.Warn("mark read failed", zap.String("conversation_id", conv.ID), zap.Error(err))
		s.fail("failed to mark messages as read")
		return
	}
	s.hub.BroadcastToUsers([]string{conv.OtherParticipant(s.user.ID)}, map[string]any{
		"type":            "messages_read",
		"conversation_id": conv.ID,
		"user_id":         s.user.ID,
	})
}

func (s *session) typing(in inbound) {
	if in.ConversationID == "" {
		return
	}
	conv, ok := s.conversation(in.ConversationID)
	if !ok {
		return
	}
	s.hub.BroadcastToUsers([]string{conv.OtherParticipant(s.user.ID)}, map[string]any{
		"type":            "typing",
		"conversation_id": conv.ID,
		"user_id":         s.user.ID,
		"display_name":    s.user.DisplayName,
	})
}

func (s *session) fail(msg string) {
	_ = s.client.writeJSON(map[string]any{
		"type":    "error",
		"message": msg,
	})
}
