package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

type RequestRepo struct {
	db store.DBTX
}

func NewRequestRepo(db store.DBTX) *RequestRepo {
	return &RequestRepo{db: db}
}

var _ domain.RequestRepository = (*RequestRepo)(nil)

const requestColumns = `r.id, r.listing_id, r.requester_id, r.requester_name, r.status, r.message,
	r.created_at, r.responded_at`

func (r *RequestRepo) Create(ctx context.Context, req *domain.SeatRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO seat_requests (id, listing_id, requester_id, requester_name, status, message, created_at, responded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.ID, req.ListingID, req.RequesterID, req.RequesterName, string(req.Status), req.Message,
		req.CreatedAt, req.RespondedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return store.Wrap("insert seat request", err)
}

func (r *RequestRepo) GetByID(ctx context.Context, id string) (*domain.SeatRequest, error) {
	req := &domain.SeatRequest{}
	err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM seat_requests r WHERE r.id = ?
	`, id), req)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get seat request", err)
	}
	return req, nil
}

func (r *RequestRepo) Transition(ctx context.Context, id string, from, to domain.RequestStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE seat_requests SET status = ?, responded_at = ?
		WHERE id = ? AND status = ?
	`, string(to), at, id, string(from))
	if err != nil {
		return store.Wrap("transition seat request", err)
	}
	n, err := store.RowsAffected("transition seat request", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (r *RequestRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_requests WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return store.Wrap("delete seat request", err)
	}
	n, err := store.RowsAffected("delete seat request", res)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *RequestRepo) FindOpen(ctx context.Context, listingID, requesterID string) (*domain.SeatRequest, error) {
	req := &domain.SeatRequest{}
	err := scanRequest(r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM seat_requests r
		WHERE r.listing_id = ? AND r.requester_id = ? AND r.status IN ('pending', 'approved')
		LIMIT 1
	`, listingID, requesterID), req)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Wrap("find open seat request", err)
	}
	return req, nil
}

func (r *RequestRepo) ListByListing(ctx context.Context, listingID string) ([]*domain.SeatRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM seat_requests r
		WHERE r.listing_id = ?
		ORDER BY r.created_at DESC
	`, listingID)
	if err != nil {
		return nil, store.Wrap("list seat requests by listing", err)
	}
	return scanRequests(rows)
}

func (r *RequestRepo) ListByRequester(ctx context.Context, requesterID string) ([]*domain.SeatRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM seat_requests r
		WHERE r.requester_id = ?
		ORDER BY r.created_at DESC
	`, requesterID)
	if err != nil {
		return nil, store.Wrap("list seat requests by requester", err)
	}
	return scanRequests(rows)
}

func (r *RequestRepo) ListPendingForOwner(ctx context.Context, ownerID string) ([]*domain.SeatRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM seat_requests r
		JOIN listings l ON l.id = r.listing_id
		WHERE l.owner_id = ? AND r.status = 'pending'
		ORDER BY r.created_at DESC
	`, ownerID)
	if err != nil {
		return nil, store.Wrap("list pending seat requests", err)
	}
	return scanRequests(rows)
}

func (r *RequestRepo) DeleteByListing(ctx context.Context, listingID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_requests WHERE listing_id = ?`, listingID)
	if err != nil {
		return 0, store.Wrap("delete seat requests", err)
	}
	return store.RowsAffected("delete seat requests", res)
}

func scanRequest(row rowScanner, req *domain.SeatRequest) error {
	return row.Scan(
		&req.ID, &req.ListingID, &req.RequesterID, &req.RequesterName, &req.Status, &req.Message,
		&req.CreatedAt, &req.RespondedAt,
	)
}

func scanRequests(rows *sql.Rows) ([]*domain.SeatRequest, error) {
	defer rows.Close()

	var res []*domain.SeatRequest
	for rows.Next() {
		req := &domain.SeatRequest{}
		if err := scanRequest(rows, req); err != nil {
			return nil, store.Wrap("scan seat request", err)
		}
		res = append(res, req)
	}
	return res, store.Wrap("iterate seat requests", rows.Err())
}
