package sqlite

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.DisplayName, u.HashedPassword, u.AvatarURL, u.Bio, u.Rating, u.ReviewCount,
		u.IsOwner, u.EmailVerified, u.PhoneVerified, u.IDVerified, u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return store.Wrap("insert user", err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) UpdateProfile(ctx context.Context, id, displayName, bio string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET display_name = ?, bio = ? WHERE id = ?
	`, displayName, bio, id)
	return expectOne("update profile", res, err)
}

func (r *UserRepo) SetAvatarURL(ctx context.Context, id string, url *string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET avatar_url = ? WHERE id = ?`, url, id)
	return expectOne("set avatar", res, err)
}

func (r *UserRepo) SetRating(ctx context.Context, id string, summary domain.RatingSummary) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET rating = ?, review_count = ? WHERE id = ?
	`, summary.Average, summary.Count, id)
	return expectOne("set rating", res, err)
}

// LockForUpdate only checks that the user exists: the single connection
// already serializes transactions.
func (r *UserRepo) LockForUpdate(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return store.Wrap("lock user", err)
}

func (r *UserRepo) MarkOwner(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_owner = 1 WHERE id = ?`, id)
	return expectOne("mark owner", res, err)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.HashedPassword, &u.AvatarURL, &u.Bio, &u.Rating, &u.ReviewCount,
		&u.IsOwner, &u.EmailVerified, &u.PhoneVerified, &u.IDVerified, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get user", err)
	}
	return u, nil
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
