package repository

import (
    "context"
    "database/sql"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// MaxListingsPerLocation bounds how many active listings are loaded for a
// single ranking request.
const MaxListingsPerLocation = 500

// ListingRepo reads listings with their owning profile and media.  It is
// read-only; listings are managed elsewhere.
type ListingRepo struct {
    db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the given database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// ActiveByLocation returns up to limit active listings of a location with
// the owning profile joined in and media attached.  Rows come back in id
// order so the capped set is stable; the ranking engine decides the display
// order.
func (r *ListingRepo) ActiveByLocation(ctx context.Context, locationID string, limit int) ([]model.Listing, error) {
    if limit <= 0 || limit > MaxListingsPerLocation {
        limit = MaxListingsPerLocation
    }
    const q = `SELECT l.id, l.profile_id, l.location_id, l.title, l.is_active, l.is_featured,
                      l.created_at, l.updated_at,
                      p.id, p.display_name, p.verification_tier, p.is_verified, p.last_active_at
               FROM listings l
               LEFT JOIN profiles p ON p.id = l.profile_id
               WHERE l.location_id = ? AND l.is_active = TRUE
               ORDER BY l.id
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, locationID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    listings := make([]model.Listing, 0, 64)
    for rows.Next() {
        var (
            l         model.Listing
            pID       sql.NullString
            pName     sql.NullString
            pTier     sql.NullString
            pVerified sql.NullBool
            pActive   sql.NullTime
        )
        if err := rows.Scan(
            &l.ID, &l.ProviderID, &l.LocationID, &l.Title, &l.IsActive, &l.IsFeatured,
            &l.CreatedAt, &l.UpdatedAt,
            &pID, &pName, &pTier, &pVerified, &pActive,
        ); err != nil {
            return nil, err
        }
        l.CreatedAt = l.CreatedAt.UTC()
        l.UpdatedAt = l.UpdatedAt.UTC()
        if pID.Valid {
            tier := pTier.String
            if tier == "" {
                tier = model.TierNone
            }
            l.Provider = &model.Provider{
                ID:               pID.String,
                DisplayName:      pName.String,
                VerificationTier: tier,
                IsVerified:       pVerified.Valid && pVerified.Bool,
                LastActiveAt:     timePtr(pActive),
            }
        }
        listings = append(listings, l)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if err := r.attachMedia(ctx, listings); err != nil {
        return nil, err
    }
    return listings, nil
}

// attachMedia loads media for all listings in one query and assigns them
// in storage order.
func (r *ListingRepo) attachMedia(ctx context.Context, listings []model.Listing) error {
    if len(listings) == 0 {
        return nil
    }
    ids := make([]string, len(listings))
    index := make(map[string]int, len(listings))
    for i, l := range listings {
        ids[i] = l.ID
        index[l.ID] = i
    }
    q, args, err := sqlx.In(
        `SELECT id, listing_id, storage_path, is_primary FROM media WHERE listing_id IN (?) ORDER BY listing_id, id`, ids)
    if err != nil {
        return err
    }
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return err
    }
    defer rows.Close()
    for rows.Next() {
        var m model.Media
        if err := rows.Scan(&m.ID, &m.ListingID, &m.StoragePath, &m.IsPrimary); err != nil {
            return err
        }
        if i, ok := index[m.ListingID]; ok {
            listings[i].Media = append(listings[i].Media, m)
        }
    }
    return rows.Err()
}
