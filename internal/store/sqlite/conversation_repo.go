package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

type ConversationRepo struct {
	db store.DBTX
}

func NewConversationRepo(db store.DBTX) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationColumns = `id, participant_a, participant_b, participant_a_name, participant_b_name,
	listing_id, service_name, last_message, last_message_at, last_sender_id, unread_a, unread_b, created_at`

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	a, b := c.Participants[0], c.Participants[1]
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, participant_a_name, participant_b_name,
			listing_id, service_name, last_message, last_message_at, last_sender_id, unread_a, unread_b, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, a, b, c.ParticipantNames[a], c.ParticipantNames[b],
		c.ListingID, c.ServiceName, c.LastMessage, c.LastMessageAt, c.LastSenderID,
		c.UnreadCount[a], c.UnreadCount[b], c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return store.Wrap("insert conversation", err)
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get conversation", err)
	}
	return c, nil
}

func (r *ConversationRepo) FindByParticipants(ctx context.Context, pair [2]string, listingID *string) (*domain.Conversation, error) {
	scope := ""
	if listingID != nil {
		scope = *listingID
	}
	c, err := scanConversation(r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = ? AND participant_b = ? AND COALESCE(listing_id, '') = ?
		LIMIT 1
	`, pair[0], pair[1], scope))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Wrap("find conversation", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY COALESCE(last_message_at, created_at) DESC
	`, userID, userID)
	if err != nil {
		return nil, store.Wrap("list conversations", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, store.Wrap("scan conversation", err)
		}
		res = append(res, c)
	}
	return res, store.Wrap("iterate conversations", rows.Err())
}

func (r *ConversationRepo) RecordMessage(ctx context.Context, conversationID, senderID, preview string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET last_message = ?,
		    last_message_at = ?,
		    last_sender_id = ?,
		    unread_a = unread_a + CASE WHEN participant_a <> ? THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_b <> ? THEN 1 ELSE 0 END
		WHERE id = ?
	`, preview, at, senderID, senderID, senderID, conversationID)
	return expectOne("record message", res, err)
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, userID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a = ? THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = ? THEN 0 ELSE unread_b END
		WHERE id = ? AND (participant_a = ? OR participant_b = ?)
	`, userID, userID, conversationID, userID, userID)
	return expectOne("reset unread", res, err)
}

func (r *ConversationRepo) UnreadTotal(ctx context.Context, userID string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(
			CASE WHEN participant_a = ? THEN unread_a ELSE 0 END +
			CASE WHEN participant_b = ? THEN unread_b ELSE 0 END
		), 0)
		FROM conversations
		WHERE participant_a = ? OR participant_b = ?
	`, userID, userID, userID, userID).Scan(&total)
	if err != nil {
		return 0, store.Wrap("unread total", err)
	}
	return total, nil
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	var (
		c              domain.Conversation
		a, b           string
		aName, bName   string
		unreadA, unrdB int
	)
	if err := row.Scan(
		&c.ID, &a, &b, &aName, &bName,
		&c.ListingID, &c.ServiceName, &c.LastMessage, &c.LastMessageAt, &c.LastSenderID,
		&unreadA, &unrdB, &c.CreatedAt,
	); err != nil {
		return nil, err
	}
	c.Participants = [2]string{a, b}
	c.ParticipantNames = map[string]string{a: aName, b: bName}
	c.UnreadCount = map[string]int{a: unreadA, b: unrdB}
	return &c, nil
}
