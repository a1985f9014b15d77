package postgres

import (
	"context"
	"database/sql"
	"errors"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

type UserRepo struct {
	db store.DBTX
}

func NewUserRepo(db store.DBTX) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

const userColumns = `id, email, display_name, hashed_password, avatar_url, bio, rating, review_count,
	is_owner, email_verified, phone_verified, id_verified, created_at`

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, hashed_password, avatar_url, bio, rating, review_count,
			is_owner, email_verified, phone_verified, id_verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, u.ID, u.Email, u.DisplayName, u.HashedPassword, u.AvatarURL, u.Bio, u.Rating, u.ReviewCount,
		u.IsOwner, u.EmailVerified, u.PhoneVerified, u.IDVerified, u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return store.Wrap("insert user", err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id, displayName, bio string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET display_name=$1, bio=$2 WHERE id=$3
	`, displayName, bio, id)
	return expectOne("update profile", res, err)
}

func (r *UserRepo) SetAvatarURL(ctx context.Context, id string, url *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_url=$1 WHERE id=$2`, url, id)
	return expectOne("set avatar", res, err)
}

func (r *UserRepo) SetRating(ctx context.Context, id string, summary domain.RatingSummary) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET rating=$1, review_count=$2 WHERE id=$3
	`, summary.Average, summary.Count, id)
	return expectOne("set rating", res, err)
}

// LockForUpdate takes a row lock on the user until the surrounding
// transaction ends. Writers of the denormalized rating take it first.
func (r *UserRepo) LockForUpdate(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return store.Wrap("lock user", err)
}

func (r *UserRepo) MarkOwner(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_owner=TRUE WHERE id=$1`, id)
	return expectOne("mark owner", res, err)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *UserRepo) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.HashedPassword, &u.AvatarURL, &u.Bio, &u.Rating, &u.ReviewCount,
		&u.IsOwner, &u.EmailVerified, &u.PhoneVerified, &u.IDVerified, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("scan user", err)
	}
	return u, nil
}
