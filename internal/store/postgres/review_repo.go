package postgres

import (
	"context"
	"database/sql"
	"errors"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

type ReviewRepo struct {
	db store.DBTX
}

func NewReviewRepo(db store.DBTX) *ReviewRepo {
	return &ReviewRepo{db: db}
}

var _ domain.ReviewRepository = (*ReviewRepo)(nil)

const reviewColumns = `id, reviewer_id, target_user_id, listing_id, rating, comment, review_type, created_at`

func (r *ReviewRepo) Create(ctx context.Context, rv *domain.Review) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (id, reviewer_id, target_user_id, listing_id, rating, comment, review_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rv.ID, rv.ReviewerID, rv.TargetUserID, rv.ListingID, rv.Rating, rv.Comment, string(rv.ReviewType), rv.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return store.Wrap("insert review", err)
}

func (r *ReviewRepo) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	rv := &domain.Review{}
	err := scanReview(r.db.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id), rv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get review", err)
	}
	return rv, nil
}

func (r *ReviewRepo) Find(ctx context.Context, reviewerID, targetUserID, listingID string) (*domain.Review, error) {
	rv := &domain.Review{}
	err := scanReview(r.db.QueryRowContext(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE reviewer_id = $1 AND target_user_id = $2 AND listing_id = $3
	`, reviewerID, targetUserID, listingID), rv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Wrap("find review", err)
	}
	return rv, nil
}

func (r *ReviewRepo) ListByTargetUser(ctx context.Context, targetUserID string) ([]*domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE target_user_id = $1
		ORDER BY created_at DESC
	`, targetUserID)
	if err != nil {
		return nil, store.Wrap("list reviews", err)
	}
	defer rows.Close()

	var res []*domain.Review
	for rows.Next() {
		rv := &domain.Review{}
		if err := scanReview(rows, rv); err != nil {
			return nil, store.Wrap("scan review", err)
		}
		res = append(res, rv)
	}
	return res, store.Wrap("iterate reviews", rows.Err())
}

func (r *ReviewRepo) Update(ctx context.Context, rv *domain.Review) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET rating = $1, comment = $2 WHERE id = $3
	`, rv.Rating, rv.Comment, rv.ID)
	return expectOne("update review", res, err)
}

func (r *ReviewRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	return expectOne("delete review", res, err)
}

func (r *ReviewRepo) Summarize(ctx context.Context, targetUserID string) (domain.RatingSummary, error) {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT AVG(rating)::float8, COUNT(*) FROM reviews WHERE target_user_id = $1
	`, targetUserID).Scan(&avg, &count)
	if err != nil {
		return domain.RatingSummary{}, store.Wrap("summarize reviews", err)
	}
	return domain.RatingSummary{Average: avg.Float64, Count: count}, nil
}

func scanReview(row rowScanner, rv *domain.Review) error {
	return row.Scan(
		&rv.ID, &rv.ReviewerID, &rv.TargetUserID, &rv.ListingID, &rv.Rating, &rv.Comment, &rv.ReviewType, &rv.CreatedAt,
	)
}
