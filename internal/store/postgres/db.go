package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the seatshare schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id               TEXT         PRIMARY KEY,
			email            VARCHAR(255) UNIQUE NOT NULL,
			display_name     VARCHAR(100) NOT NULL,
			hashed_password  VARCHAR(255) NOT NULL,
			avatar_url       TEXT,
			bio              TEXT         NOT NULL DEFAULT '',
			rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
			review_count     INTEGER      NOT NULL DEFAULT 0,
			is_owner         BOOLEAN      NOT NULL DEFAULT FALSE,
			email_verified   BOOLEAN      NOT NULL DEFAULT FALSE,
			phone_verified   BOOLEAN      NOT NULL DEFAULT FALSE,
			id_verified      BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Listings
		`CREATE TABLE IF NOT EXISTS listings (
			id              TEXT         PRIMARY KEY,
			owner_id        TEXT         NOT NULL REFERENCES users(id),
			service         VARCHAR(40)  NOT NULL,
			plan_name       VARCHAR(100) NOT NULL,
			total_seats     INTEGER      NOT NULL CHECK (total_seats >= 2),
			available_seats INTEGER      NOT NULL CHECK (available_seats >= 0 AND available_seats <= total_seats),
			price_per_seat  DOUBLE PRECISION NOT NULL CHECK (price_per_seat > 0),
			is_active       BOOLEAN      NOT NULL DEFAULT TRUE,
			joined_count    INTEGER      NOT NULL DEFAULT 0 CHECK (joined_count >= 0),
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Seat requests
		`CREATE TABLE IF NOT EXISTS seat_requests (
			id             TEXT        PRIMARY KEY,
			listing_id     TEXT        NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			requester_id   TEXT        NOT NULL REFERENCES users(id),
			requester_name VARCHAR(100) NOT NULL DEFAULT '',
			status         VARCHAR(16) NOT NULL CHECK (status IN ('pending', 'approved', 'rejected', 'cancelled')),
			message        TEXT        NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			responded_at   TIMESTAMPTZ
		)`,

		// Reviews
		`CREATE TABLE IF NOT EXISTS reviews (
			id             TEXT        PRIMARY KEY,
			reviewer_id    TEXT        NOT NULL REFERENCES users(id),
			target_user_id TEXT        NOT NULL REFERENCES users(id),
			listing_id     TEXT        NOT NULL,
			rating         SMALLINT    NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment        TEXT        NOT NULL DEFAULT '',
			review_type    VARCHAR(16) NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (reviewer_id, target_user_id, listing_id)
		)`,

		// Conversations
		`CREATE TABLE IF NOT EXISTS conversations (
			id                 TEXT         PRIMARY KEY,
			participant_a      TEXT         NOT NULL REFERENCES users(id),
			participant_b      TEXT         NOT NULL REFERENCES users(id),
			participant_a_name VARCHAR(100) NOT NULL DEFAULT '',
			participant_b_name VARCHAR(100) NOT NULL DEFAULT '',
			listing_id         TEXT,
			service_name       VARCHAR(40),
			last_message       TEXT         NOT NULL DEFAULT '',
			last_message_at    TIMESTAMPTZ,
			last_sender_id     TEXT,
			unread_a           INTEGER      NOT NULL DEFAULT 0,
			unread_b           INTEGER      NOT NULL DEFAULT 0,
			created_at         TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id              TEXT        PRIMARY KEY,
			conversation_id TEXT        NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       TEXT        NOT NULL REFERENCES users(id),
			content         TEXT        NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_read         BOOLEAN     NOT NULL DEFAULT FALSE,
			seq             BIGSERIAL
		)`,
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS seq BIGSERIAL`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_service ON listings(service)`,
		`CREATE INDEX IF NOT EXISTS idx_seat_requests_listing ON seat_requests(listing_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_seat_requests_requester ON seat_requests(requester_id, created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_seat_requests_open
			ON seat_requests(listing_id, requester_id) WHERE status IN ('pending', 'approved')`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_target ON reviews(target_user_id, created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_conversations_pair
			ON conversations(participant_a, participant_b, COALESCE(listing_id, ''))`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_a ON conversations(participant_a)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_b ON conversations(participant_b)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_seq ON messages(conversation_id, created_at DESC, seq DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}

// Store is the PostgreSQL implementation of domain.Store.
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

// ── helpers ──────────────────────────────────────────────────────────────────

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// expectOne turns an update that matched no row into domain.ErrNotFound.
func expectOne(op string, res sql.Result, err error) error {
	if err != nil {
		return store.Wrap(op, err)
	}
	n, err := store.RowsAffected(op, res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
