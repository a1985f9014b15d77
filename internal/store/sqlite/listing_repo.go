package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"seatshare/internal/domain"
	"seatshare/internal/store"
)

type ListingRepo struct {
	db store.DBTX
}

func NewListingRepo(db store.DBTX) *ListingRepo {
	return &ListingRepo{db: db}
}

var _ domain.ListingRepository = (*ListingRepo)(nil)

const listingColumns = `id, owner_id, service, plan_name, total_seats, available_seats,
	price_per_seat, is_active, joined_count, created_at`

func (r *ListingRepo) Create(ctx context.Context, l *domain.Listing) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listings (id, owner_id, service, plan_name, total_seats, available_seats,
			price_per_seat, is_active, joined_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, l.ID, l.OwnerID, string(l.Service), l.PlanName, l.TotalSeats, l.AvailableSeats,
		l.PricePerSeat, l.IsActive, l.JoinedCount, l.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return store.Wrap("insert listing", err)
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	l := &domain.Listing{}
	err := scanListing(r.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id), l)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get listing", err)
	}
	return l, nil
}

func (r *ListingRepo) UpdateDetails(ctx context.Context, l *domain.Listing) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET plan_name = ?, price_per_seat = ?, is_active = ? WHERE id = ?
	`, l.PlanName, l.PricePerSeat, l.IsActive, l.ID)
	return expectOne("update listing", res, err)
}

func (r *ListingRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	return expectOne("delete listing", res, err)
}

func (r *ListingRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Listing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE owner_id = ?
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, store.Wrap("list listings by owner", err)
	}
	return scanListings(rows)
}

func (r *ListingRepo) Browse(ctx context.Context, f domain.ListingFilter) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE 1 = 1`
	var args []any
	if f.Service != "" {
		query += ` AND service = ?`
		args = append(args, string(f.Service))
	}
	if f.OnlyActive {
		query += ` AND is_active = 1`
	}
	if f.OnlyWithSeats {
		query += ` AND available_seats > 0`
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap("browse listings", err)
	}
	return scanListings(rows)
}

func (r *ListingRepo) ReserveSeat(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET available_seats = available_seats - 1,
		    joined_count = joined_count + 1
		WHERE id = ? AND available_seats > 0
	`, id)
	if err != nil {
		return store.Wrap("reserve seat", err)
	}
	n, err := store.RowsAffected("reserve seat", res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNoSeatsAvailable
	}
	return nil
}

func (r *ListingRepo) ReleaseSeat(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings
		SET available_seats = MIN(available_seats + 1, total_seats),
		    joined_count = MAX(joined_count - 1, 0)
		WHERE id = ?
	`, id)
	return expectOne("release seat", res, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner, l *domain.Listing) error {
	return row.Scan(
		&l.ID, &l.OwnerID, &l.Service, &l.PlanName, &l.TotalSeats, &l.AvailableSeats,
		&l.PricePerSeat, &l.IsActive, &l.JoinedCount, &l.CreatedAt,
	)
}

func scanListings(rows *sql.Rows) ([]*domain.Listing, error) {
	defer rows.Close()

	var res []*domain.Listing
	for rows.Next() {
		l := &domain.Listing{}
		if err := scanListing(rows, l); err != nil {
			return nil, store.Wrap("scan listing", err)
		}
		res = append(res, l)
	}
	return res, store.Wrap("iterate listings", rows.Err())
}
