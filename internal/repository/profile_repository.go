package repository

import (
    "context"
    "database/sql"
    "errors"
)

// ProfileRepo covers the profile columns the referral flow needs.  Profile
// management itself lives outside this service.
type ProfileRepo struct {
    db *sql.DB
}

// NewProfileRepo returns a new ProfileRepo bound to the given database.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// IDByShareCode resolves a referral share code to its owner.
func (r *ProfileRepo) IDByShareCode(ctx context.Context, shareCode string) (string, error) {
    var id string
    err := r.db.QueryRowContext(ctx,
        `SELECT id FROM profiles WHERE referral_share_code = ? LIMIT 1`, shareCode).Scan(&id)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrProfileNotFound
    }
    return id, err
}

// ShareCode returns the profile's share code, or "" when none was issued yet.
func (r *ProfileRepo) ShareCode(ctx context.Context, profileID string) (string, error) {
    var code sql.NullString
    err := r.db.QueryRowContext(ctx,
        `SELECT referral_share_code FROM profiles WHERE id = ?`, profileID).Scan(&code)
    if errors.Is(err, sql.ErrNoRows) {
        return "", ErrProfileNotFound
    }
    if err != nil {
        return "", err
    }
    return code.String, nil
}

// SetShareCode stores a share code for a profile that has none.  A code
// already used by another profile yields ErrConflict; ErrNoChange means the
// profile is missing or got a code concurrently.
func (r *ProfileRepo) SetShareCode(ctx context.Context, profileID, code string) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE profiles SET referral_share_code = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND referral_share_code IS NULL`, code, profileID)
    if err != nil {
        if isDuplicateKey(err) {
            return ErrConflict
        }
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNoChange
    }
    return nil
}
