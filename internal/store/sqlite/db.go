package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

// Open opens a SQLite database with the given DSN.
//
// SQLite allows a single writer, so the pool is limited to one connection and
// transactions are serialized in-process.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA busy_timeout = 5000;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Migrate runs idempotent CREATE TABLE / CREATE INDEX statements.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			email           TEXT UNIQUE NOT NULL,
			display_name    TEXT NOT NULL,
			hashed_password TEXT NOT NULL,
			avatar_url      TEXT DEFAULT NULL,
			bio             TEXT NOT NULL DEFAULT '',
			rating          REAL NOT NULL DEFAULT 0,
			review_count    INTEGER NOT NULL DEFAULT 0,
			is_owner        BOOLEAN NOT NULL DEFAULT 0,
			email_verified  BOOLEAN NOT NULL DEFAULT 0,
			phone_verified  BOOLEAN NOT NULL DEFAULT 0,
			id_verified     BOOLEAN NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS listings (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL,
			service         TEXT NOT NULL,
			plan_name       TEXT NOT NULL,
			total_seats     INTEGER NOT NULL CHECK (total_seats >= 2),
			available_seats INTEGER NOT NULL CHECK (available_seats >= 0 AND available_seats <= total_seats),
			price_per_seat  REAL NOT NULL CHECK (price_per_seat > 0),
			is_active       BOOLEAN NOT NULL DEFAULT 1,
			joined_count    INTEGER NOT NULL DEFAULT 0 CHECK (joined_count >= 0),
			created_at      DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS seat_requests (
			id             TEXT PRIMARY KEY,
			listing_id     TEXT NOT NULL,
			requester_id   TEXT NOT NULL,
			requester_name TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
			message        TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL,
			responded_at   DATETIME DEFAULT NULL,
			FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS reviews (
			id             TEXT PRIMARY KEY,
			reviewer_id    TEXT NOT NULL,
			target_user_id TEXT NOT NULL,
			listing_id     TEXT NOT NULL,
			rating         INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
			comment        TEXT NOT NULL DEFAULT '',
			review_type    TEXT NOT NULL,
			created_at     DATETIME NOT NULL,
			UNIQUE (reviewer_id, target_user_id, listing_id)
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id                 TEXT PRIMARY KEY,
			participant_a      TEXT NOT NULL,
			participant_b      TEXT NOT NULL,
			participant_a_name TEXT NOT NULL DEFAULT '',
			participant_b_name TEXT NOT NULL DEFAULT '',
			listing_id         TEXT DEFAULT NULL,
			service_name       TEXT DEFAULT NULL,
			last_message       TEXT NOT NULL DEFAULT '',
			last_message_at    DATETIME DEFAULT NULL,
			last_sender_id     TEXT DEFAULT NULL,
			unread_a           INTEGER NOT NULL DEFAULT 0,
			unread_b           INTEGER NOT NULL DEFAULT 0,
			created_at         DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender_id       TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      DATETIME NOT NULL,
			is_read         BOOLEAN NOT NULL DEFAULT 0,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_service ON listings(service);`,
		`CREATE INDEX IF NOT EXISTS idx_seat_requests_listing ON seat_requests(listing_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_seat_requests_requester ON seat_requests(requester_id, created_at DESC);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_seat_requests_open
			ON seat_requests(listing_id, requester_id) WHERE status IN ('pending', 'approved');`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_target ON reviews(target_user_id, created_at DESC);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_conversations_pair
			ON conversations(participant_a, participant_b, COALESCE(listing_id, ''));`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_a ON conversations(participant_a);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_b ON conversations(participant_b);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Store is the SQLite implementation of domain.Store.
type Store struct {
	db *sql.DB
	q  store.DBTX
}

var _ domain.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Users() domain.UserRepository                 { return NewUserRepo(s.q) }
func (s *Store) Listings() domain.ListingRepository           { return NewListingRepo(s.q) }
func (s *Store) Requests() domain.RequestRepository           { return NewRequestRepo(s.q) }
func (s *Store) Reviews() domain.ReviewRepository             { return NewReviewRepo(s.q) }
func (s *Store) Conversations() domain.ConversationRepository { return NewConversationRepo(s.q) }
func (s *Store) Messages() domain.MessageRepository           { return NewMessageRepo(s.q) }

func (s *Store) InTx(ctx context.Context, fn func(tx domain.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	return store.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&Store{db: s.db, q: tx})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
