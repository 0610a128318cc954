package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// CreditRepo persists featured credit grants and their audit log.  It
// implements ledger.Store: every mutation and its audit row are written in
// one transaction, so a failed audit insert rolls the mutation back.
type CreditRepo struct {
    db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the provided database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

var _ ledger.Store = (*CreditRepo)(nil)

const defaultListLimit = 200

const creditColumns = `id, profile_id, city_id, seconds_granted, seconds_used, reason, created_at`

// CreateGrant inserts the grant and its audit entry atomically.
func (r *CreditRepo) CreateGrant(ctx context.Context, g *model.CreditGrant, entry *model.CreditAuditEntry) error {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return fmt.Errorf("begin: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const q = `INSERT INTO featured_credits (id, profile_id, city_id, seconds_granted, seconds_used, reason, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    if _, err := tx.ExecContext(ctx, q,
        g.ID, g.ProviderID, nullString(g.CityID), g.SecondsGranted, g.SecondsUsed, g.Reason, g.CreatedAt.UTC(),
    ); err != nil {
        return fmt.Errorf("insert credit: %w", err)
    }
    if err := r.insertAuditTx(ctx, tx, entry); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return fmt.Errorf("commit: %w", err)
    }
    committed = true
    return nil
}

// RevokeGrant locks the grant row, lets plan build the audit entry from the
// locked state, then marks the grant fully used and writes the entry.  A
// grant that is already fully used is left untouched and false is
// returned, which makes concurrent revokes of the same id collapse into one.
func (r *CreditRepo) RevokeGrant(ctx context.Context, creditID string, plan ledger.RevokePlan) (bool, error) {
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return false, fmt.Errorf("begin: %w", err)
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    row := tx.QueryRowContext(ctx, `SELECT `+creditColumns+` FROM featured_credits WHERE id = ? FOR UPDATE`, creditID)
    g, err := scanCredit(row)
    if errors.Is(err, sql.ErrNoRows) {
        return false, ErrCreditNotFound
    }
    if err != nil {
        return false, fmt.Errorf("load credit: %w", err)
    }
    if g.Revoked() {
        return false, nil
    }

    entry := plan(g)
    if _, err := tx.ExecContext(ctx,
        `UPDATE featured_credits SET seconds_used = seconds_granted WHERE id = ?`, g.ID,
    ); err != nil {
        return false, fmt.Errorf("update credit: %w", err)
    }
    if err := r.insertAuditTx(ctx, tx, &entry); err != nil {
        return false, err
    }
    if err := tx.Commit(); err != nil {
        return false, fmt.Errorf("commit: %w", err)
    }
    committed = true
    return true, nil
}

// GrantsForProviders returns every grant owned by the given profiles.
func (r *CreditRepo) GrantsForProviders(ctx context.Context, providerIDs []string) ([]model.CreditGrant, error) {
    if len(providerIDs) == 0 {
        return []model.CreditGrant{}, nil
    }
    q, args, err := sqlx.In(`SELECT `+creditColumns+` FROM featured_credits WHERE profile_id IN (?)`, providerIDs)
    if err != nil {
        return nil, err
    }
    return r.queryCredits(ctx, q, args...)
}

// RecentGrants returns the newest grants first.
func (r *CreditRepo) RecentGrants(ctx context.Context, limit int) ([]model.CreditGrant, error) {
    if limit <= 0 {
        limit = defaultListLimit
    }
    return r.queryCredits(ctx,
        `SELECT `+creditColumns+` FROM featured_credits ORDER BY created_at DESC, id ASC LIMIT ?`, limit)
}

// AuditForProvider returns the newest audit entries of one profile first.
func (r *CreditRepo) AuditForProvider(ctx context.Context, providerID string, limit int) ([]model.CreditAuditEntry, error) {
    const q = `SELECT id, profile_id, city_id, actor_user_id, action, seconds_delta, reason, metadata, created_at
               FROM featured_credit_audit_logs
               WHERE profile_id = ?
               ORDER BY created_at DESC, id ASC
               LIMIT ?`
    if limit <= 0 {
        limit = defaultListLimit
    }
    rows, err := r.db.QueryContext(ctx, q, providerID, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.CreditAuditEntry, 0, limit)
    for rows.Next() {
        var (
            e    model.CreditAuditEntry
            city sql.NullString
            raw  []byte
        )
        if err := rows.Scan(&e.ID, &e.ProviderID, &city, &e.ActorID, &e.Action,
            &e.SecondsDelta, &e.Reason, &raw, &e.CreatedAt); err != nil {
            return nil, err
        }
        e.CityID = stringPtr(city)
        if len(raw) > 0 {
            if err := json.Unmarshal(raw, &e.Metadata); err != nil {
                return nil, fmt.Errorf("decode audit metadata %s: %w", e.ID, err)
            }
        }
        out = append(out, e)
    }
    return out, rows.Err()
}

func (r *CreditRepo) insertAuditTx(ctx context.Context, tx *sql.Tx, e *model.CreditAuditEntry) error {
    meta, err := json.Marshal(e.Metadata)
    if err != nil {
        return fmt.Errorf("encode audit metadata: %w", err)
    }
    const q = `INSERT INTO featured_credit_audit_logs
               (id, profile_id, city_id, actor_user_id, action, seconds_delta, reason, metadata, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    if _, err := tx.ExecContext(ctx, q,
        e.ID, e.ProviderID, nullString(e.CityID), e.ActorID, e.Action, e.SecondsDelta, e.Reason, meta, e.CreatedAt.UTC(),
    ); err != nil {
        return fmt.Errorf("insert audit: %w", err)
    }
    return nil
}

func (r *CreditRepo) queryCredits(ctx context.Context, q string, args ...any) ([]model.CreditGrant, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.CreditGrant
    for rows.Next() {
        g, err := scanCredit(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, g)
    }
    return out, rows.Err()
}

type scanner interface {
    Scan(dest ...any) error
}

func scanCredit(s scanner) (model.CreditGrant, error) {
    var (
        g    model.CreditGrant
        city sql.NullString
    )
    err := s.Scan(&g.ID, &g.ProviderID, &city, &g.SecondsGranted, &g.SecondsUsed, &g.Reason, &g.CreatedAt)
    if err != nil {
        return g, err
    }
    g.CityID = stringPtr(city)
    g.CreatedAt = g.CreatedAt.UTC()
    return g, nil
}

func nullString(p *string) sql.NullString {
    if p == nil {
        return sql.NullString{}
    }
    return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
    if !ns.Valid {
        return nil
    }
    s := ns.String
    return &s
}

func timePtr(nt sql.NullTime) *time.Time {
    if !nt.Valid {
        return nil
    }
    t := nt.Time.UTC()
    return &t
}
