package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "time"

    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// ReferralRepo stores captured share-link visits and their attribution.
type ReferralRepo struct {
    db *sql.DB
}

// NewReferralRepo returns a new ReferralRepo bound to the given database.
func NewReferralRepo(db *sql.DB) *ReferralRepo { return &ReferralRepo{db: db} }

const referralColumns = `id, code, referrer_profile_id, referred_profile_id, source_city,
                         utm_source, utm_medium, utm_campaign, created_at, attributed_at`

// Capture inserts an unattributed referral and populates its ID.  A
// duplicate code yields ErrConflict so the caller can retry with a new one.
func (r *ReferralRepo) Capture(ctx context.Context, ref *model.Referral) error {
    const q = `INSERT INTO referrals (code, referrer_profile_id, source_city, utm_source, utm_medium, utm_campaign)
               VALUES (?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        ref.Code, ref.ReferrerProfileID,
        nullString(ref.SourceCity), nullString(ref.UTMSource), nullString(ref.UTMMedium), nullString(ref.UTMCampaign),
    )
    if err != nil {
        if isDuplicateKey(err) {
            return ErrConflict
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    ref.ID = uint64(id)
    return nil
}

// Attribute links a pending referral to the profile that signed up.  It
// returns ErrReferralNotFound for unknown codes and ErrConflict when the
// referral is already attributed or would credit the referrer for their
// own signup.
func (r *ReferralRepo) Attribute(ctx context.Context, code, referredProfileID string) (model.Referral, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Referral{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    ref, err := scanReferral(tx.QueryRowContext(ctx,
        `SELECT `+referralColumns+` FROM referrals WHERE code = ? FOR UPDATE`, code))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Referral{}, ErrReferralNotFound
    }
    if err != nil {
        return model.Referral{}, err
    }
    if ref.ReferredProfileID != nil || ref.ReferrerProfileID == referredProfileID {
        return model.Referral{}, ErrConflict
    }

    now := time.Now().UTC()
    if _, err := tx.ExecContext(ctx,
        `UPDATE referrals SET referred_profile_id = ?, attributed_at = ? WHERE id = ?`,
        referredProfileID, now, ref.ID,
    ); err != nil {
        if isDuplicateKey(err) {
            // referred_profile_id is unique: this profile was already attributed elsewhere
            return model.Referral{}, ErrConflict
        }
        return model.Referral{}, fmt.Errorf("attribute referral: %w", err)
    }
    if err := tx.Commit(); err != nil {
        return model.Referral{}, err
    }
    committed = true
    ref.ReferredProfileID = &referredProfileID
    ref.AttributedAt = &now
    return ref, nil
}

// Recent returns the newest referrals first.
func (r *ReferralRepo) Recent(ctx context.Context, limit int) ([]model.Referral, error) {
    if limit <= 0 {
        limit = defaultListLimit
    }
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+referralColumns+` FROM referrals ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Referral, 0, limit)
    for rows.Next() {
        ref, err := scanReferral(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, ref)
    }
    return out, rows.Err()
}

// CountsForReferrer returns how many of a profile's referrals are
// attributed and how many are still pending.
func (r *ReferralRepo) CountsForReferrer(ctx context.Context, profileID string) (attributed, pending int64, err error) {
    const q = `SELECT
                 COALESCE(SUM(CASE WHEN referred_profile_id IS NOT NULL THEN 1 ELSE 0 END), 0),
                 COALESCE(SUM(CASE WHEN referred_profile_id IS NULL THEN 1 ELSE 0 END), 0)
               FROM referrals
               WHERE referrer_profile_id = ?`
    err = r.db.QueryRowContext(ctx, q, profileID).Scan(&attributed, &pending)
    return attributed, pending, err
}

func scanReferral(s scanner) (model.Referral, error) {
    var (
        ref                                   model.Referral
        referred, city, src, medium, campaign sql.NullString
        attributedAt                          sql.NullTime
    )
    if err := s.Scan(&ref.ID, &ref.Code, &ref.ReferrerProfileID, &referred, &city,
        &src, &medium, &campaign, &ref.CreatedAt, &attributedAt); err != nil {
        return ref, err
    }
    ref.ReferredProfileID = stringPtr(referred)
    ref.SourceCity = stringPtr(city)
    ref.UTMSource = stringPtr(src)
    ref.UTMMedium = stringPtr(medium)
    ref.UTMCampaign = stringPtr(campaign)
    ref.CreatedAt = ref.CreatedAt.UTC()
    ref.AttributedAt = timePtr(attributedAt)
    return ref, nil
}
