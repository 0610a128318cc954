package repository

import (
    "context"
    "database/sql"

    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// LocationRepo reads the locations table.  It is owned upstream and only
// queried here.
type LocationRepo struct {
    db *sql.DB
}

// NewLocationRepo returns a new LocationRepo bound to the given database.
func NewLocationRepo(db *sql.DB) *LocationRepo { return &LocationRepo{db: db} }

// Active lists active locations sorted by country, state and city.
func (r *LocationRepo) Active(ctx context.Context) ([]model.Location, error) {
    const q = `SELECT id, city, COALESCE(state, ''), country
               FROM locations
               WHERE is_active = TRUE
               ORDER BY country, state, city`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Location, 0, 32)
    for rows.Next() {
        var l model.Location
        if err := rows.Scan(&l.ID, &l.City, &l.State, &l.Country); err != nil {
            return nil, err
        }
        out = append(out, l)
    }
    return out, rows.Err()
}
