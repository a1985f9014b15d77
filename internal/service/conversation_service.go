package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatshare/internal/domain"
	"seatshare/internal/logger"
)

const (
	previewLength       = 100
	defaultMessagePage  = 50
	maxMessagePage      = 200
	undecryptableNotice = "[message unavailable]"
)

// Cipher seals message content at rest.
type Cipher interface {
	Encrypt(plain string) (string, error)
	Decrypt(enc string) (string, error)
}

type ConversationConfig struct {
	MaxMessageLength int
	// HistoryLimit caps stored messages per conversation; zero keeps all.
	HistoryLimit int
}

type ConversationService struct {
	store  domain.Store
	cipher Cipher
	events domain.EventPublisher
	log    *zap.Logger
	cfg    ConversationConfig
	now    func() time.Time
}

func NewConversationService(
	store domain.Store,
	cipher Cipher,
	events domain.EventPublisher,
	log *zap.Logger,
	cfg ConversationConfig,
) *ConversationService {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 5000
	}
	return &ConversationService{
		store:  store,
		cipher: cipher,
		events: events,
		log:    log.Named("conversations"),
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FindOrCreate returns the conversation of the unordered pair (a, b) in the
// given listing scope, creating it when absent. A nil listing only matches a
// conversation without listing context.
func (s *ConversationService) FindOrCreate(ctx context.Context, a, b string, listingID *string) (*domain.Conversation, error) {
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both participants are required", domain.ErrValidation)
	}
	if a == b {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", domain.ErrValidation)
	}
	if listingID != nil && *listingID == "" {
		listingID = nil
	}
	pair := domain.CanonicalPair(a, b)

	var conv *domain.Conversation
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		existing, err := tx.Conversations().FindByParticipants(ctx, pair, listingID)
		if err != nil {
			return err
		}
		if existing != nil {
			conv = existing
			return nil
		}

		names := make(map[string]string, 2)
		for _, id := range pair {
			u, err := tx.Users().GetByID(ctx, id)
			if err != nil {
				return err
			}
			names[id] = u.DisplayName
		}

		var serviceName *string
		if listingID != nil {
			l, err := tx.Listings().GetByID(ctx, *listingID)
			if err != nil {
				return err
			}
			name := string(l.Service)
			serviceName = &name
		}

		conv = &domain.Conversation{
			ID:               uuid.NewString(),
			Participants:     pair,
			ParticipantNames: names,
			ListingID:        listingID,
			ServiceName:      serviceName,
			UnreadCount:      map[string]int{pair[0]: 0, pair[1]: 0},
			CreatedAt:        s.now(),
		}
		return tx.Conversations().Create(ctx, conv)
	})
	if errors.Is(err, domain.ErrConflict) {
		// Created concurrently by the other party.
		conv, err = s.store.Conversations().FindByParticipants(ctx, pair, listingID)
		if err == nil && conv == nil {
			err = domain.ErrConflict
		}
	}
	if err != nil {
		return nil, fmt.Errorf("find or create conversation: %w", err)
	}
	return s.decryptPreview(ctx, conv), nil
}

// SendMessage stores an encrypted message, updates the conversation's last
// message fields and bumps the unread counter of the other participant.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message is empty", domain.ErrValidation)
	}
	if n := len([]rune(content)); n > s.cfg.MaxMessageLength {
		return nil, fmt.Errorf("%w: message is %d characters, limit is %d", domain.ErrValidation, n, s.cfg.MaxMessageLength)
	}

	sealed, err := s.cipher.Encrypt(content)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}
	sealedPreview, err := s.cipher.Encrypt(preview(content))
	if err != nil {
		return nil, fmt.Errorf("encrypt preview: %w", err)
	}

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        sealed,
		CreatedAt:      s.now(),
	}
	var conv *domain.Conversation
	err = s.store.InTx(ctx, func(tx domain.Store) error {
		var err error
		conv, err = tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(senderID) {
			return domain.ErrUnauthorized
		}
		if err := tx.Messages().Create(ctx, msg); err != nil {
			return err
		}
		if err := tx.Conversations().RecordMessage(ctx, conversationID, senderID, sealedPreview, msg.CreatedAt); err != nil {
			return err
		}
		if s.cfg.HistoryLimit > 0 {
			if _, err := tx.Messages().PruneOld(ctx, conversationID, s.cfg.HistoryLimit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	msg.Content = content
	publish(ctx, s.events, s.log, domain.EventMessageSent, senderID, conversationID,
		[]string{conv.OtherParticipant(senderID)}, map[string]string{
			"conversation_id": conversationID,
			"message_id":      msg.ID,
			"sender_name":     conv.ParticipantNames[senderID],
			"preview":         preview(content),
		})
	return msg, nil
}

// MarkRead zeroes the reader's unread counter and flags the other party's
// messages as read. The other participant's counter is untouched.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID string) error {
	err := s.store.InTx(ctx, func(tx domain.Store) error {
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(userID) {
			return domain.ErrUnauthorized
		}
		if err := tx.Conversations().ResetUnread(ctx, conversationID, userID); err != nil {
			return err
		}
		return tx.Messages().MarkReadFor(ctx, conversationID, userID)
	})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// ListConversations returns the user's conversations, most recent activity first.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	convs, err := s.store.Conversations().ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i] = s.decryptPreview(ctx, convs[i])
	}
	return convs, nil
}

func (s *ConversationService) GetConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := s.store.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, domain.ErrUnauthorized
	}
	return s.decryptPreview(ctx, conv), nil
}

// ListMessages returns up to limit of the newest messages in chronological order.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID, userID string, limit int) ([]*domain.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	msgs, err := s.store.Messages().ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		m.Content = s.open(ctx, m.Content, zap.String("message_id", m.ID))
		out = append(out, m)
	}
	return out, nil
}

func (s *ConversationService) UnreadTotal(ctx context.Context, userID string) (int, error) {
	return s.store.Conversations().UnreadTotal(ctx, userID)
}

func (s *ConversationService) decryptPreview(ctx context.Context, c *domain.Conversation) *domain.Conversation {
	if c != nil && c.LastMessage != "" {
		c.LastMessage = s.open(ctx, c.LastMessage, zap.String("conversation_id", c.ID))
	}
	return c
}

func (s *ConversationService) open(ctx context.Context, sealed string, field zap.Field) string {
	plain, err := s.cipher.Decrypt(sealed)
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("decrypt failed", field, zap.Error(err))
		return undecryptableNotice
	}
	return plain
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLength {
		return content
	}
	return string(r[:previewLength]) + "…"
}
