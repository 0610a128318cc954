package repository

import (
    "context"
    "database/sql"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// ReviewRepo reads approved reviews.  Reviews are append-only and never
// modified here.
type ReviewRepo struct {
    db *sql.DB
}

// NewReviewRepo returns a new ReviewRepo bound to the given database.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// ApprovedByListings returns the approved reviews of the given listings.
// An empty id list returns an empty slice without querying.
func (r *ReviewRepo) ApprovedByListings(ctx context.Context, listingIDs []string) ([]model.Review, error) {
    if len(listingIDs) == 0 {
        return []model.Review{}, nil
    }
    q, args, err := sqlx.In(
        `SELECT listing_id, rating FROM reviews WHERE listing_id IN (?) AND is_approved = TRUE`, listingIDs)
    if err != nil {
        return nil, err
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Review, 0, len(listingIDs))
    for rows.Next() {
        rv := model.Review{IsApproved: true}
        if err := rows.Scan(&rv.ListingID, &rv.Rating); err != nil {
            return nil, err
        }
        out = append(out, rv)
    }
    return out, rows.Err()
}
