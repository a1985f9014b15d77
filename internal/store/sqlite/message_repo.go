package sqlite

import (
	"context"
	"database/sql"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

type MessageRepo struct {
	db store.DBTX
}

func NewMessageRepo(db store.DBTX) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.IsRead)
	return store.Wrap("insert message", err)
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID string, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, store.Wrap("list messages", err)
	}
	return scanMessages(rows)
}

func (r *MessageRepo) MarkReadFor(ctx context.Context, conversationID, readerID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0
	`, conversationID, readerID)
	return store.Wrap("mark messages read", err)
}

// PruneOld keeps only the newest keepLimit messages of a conversation.
// Equal timestamps are ordered by rowid, which grows with each insert.
func (r *MessageRepo) PruneOld(ctx context.Context, conversationID string, keepLimit int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE conversation_id = ? AND id NOT IN (
			SELECT id FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`, conversationID, conversationID, keepLimit)
	if err != nil {
		return 0, store.Wrap("prune messages", err)
	}
	return store.RowsAffected("prune messages", res)
}

func scanMessages(rows *sql.Rows) ([]*domain.Message, error) {
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.IsRead); err != nil {
			return nil, store.Wrap("scan message", err)
		}
		res = append(res, m)
	}
	return res, store.Wrap("iterate messages", rows.Err())
}
