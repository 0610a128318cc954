// Package ledger owns featured-visibility credit: granting, revoking and
// reading the time-decaying balance of a provider, with one audit entry per
// mutation.  Balances are never stored; they are computed from the grant
// rows and an injected clock on every read.
package ledger

import (
    "context"
    "errors"
    "fmt"
    "math"
    "strings"
    "time"

    "github.com/google/uuid"
    "go.uber.org/zap"

    "github.com/iliyamo/marketplace-ranking/internal/metrics"
    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// MaxGrantSeconds is the default upper bound for a single grant (one year).
const MaxGrantSeconds int64 = 31_536_000

// Default reasons used when the caller leaves the reason blank.
const (
    DefaultGrantReason  = "Manual featured credit grant"
    DefaultRevokeReason = "Manual featured credit revoke"
)

// SystemActor is recorded when a mutation carries no actor identity.
const SystemActor = "system"

// RevokePlan builds the audit entry for a grant that is about to be revoked.
// The store calls it with the row it locked, inside the same transaction.
type RevokePlan func(g model.CreditGrant) model.CreditAuditEntry

// Store persists grants and audit entries.  CreateGrant and RevokeGrant
// must write the mutation and its audit entry atomically; if either write
// fails, neither may become visible.
type Store interface {
    CreateGrant(ctx context.Context, g *model.CreditGrant, entry *model.CreditAuditEntry) error
    // RevokeGrant sets seconds_used = seconds_granted on creditID and writes
    // the entry returned by plan.  It returns false without writing anything
    // when the grant is already fully used.  Unknown ids yield an error
    // matching ErrNotFound.
    RevokeGrant(ctx context.Context, creditID string, plan RevokePlan) (bool, error)
    GrantsForProviders(ctx context.Context, providerIDs []string) ([]model.CreditGrant, error)
    RecentGrants(ctx context.Context, limit int) ([]model.CreditGrant, error)
    AuditForProvider(ctx context.Context, providerID string, limit int) ([]model.CreditAuditEntry, error)
}

// Notifier is told about every committed mutation.  Failures are its own
// concern; the ledger does not wait on or inspect them.
type Notifier interface {
    CreditChanged(ctx context.Context, entry model.CreditAuditEntry)
}

// GrantRequest describes a new block of featured time.
type GrantRequest struct {
    ProviderID string
    CityID     *string // nil or empty for a global grant
    Seconds    float64
    Reason     string
    Actor      string
    Metadata   map[string]any
}

// RevokeRequest takes back the whole remaining balance of one grant.
type RevokeRequest struct {
    CreditID string
    Reason   string
    Actor    string
    Metadata map[string]any
}

// GrantView is a grant annotated with its balance at read time.
type GrantView struct {
    model.CreditGrant
    RemainingSeconds int64 `json:"remaining_seconds"`
}

// Ledger is safe for concurrent use; it holds no mutable state of its own.
type Ledger struct {
    store      Store
    log        *zap.SugaredLogger
    now        func() time.Time
    newID      func() string
    maxSeconds int64
    notifier   Notifier
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithIDGenerator replaces uuid.NewString for grant and audit ids.
func WithIDGenerator(gen func() string) Option { return func(l *Ledger) { l.newID = gen } }

// WithMaxGrantSeconds overrides the one-year cap.  Non-positive values are ignored.
func WithMaxGrantSeconds(n int64) Option {
    return func(l *Ledger) {
        if n > 0 {
            l.maxSeconds = n
        }
    }
}

// WithNotifier attaches a change notifier.
func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

// New returns a Ledger over store.  A nil logger is replaced by a no-op one.
func New(store Store, log *zap.SugaredLogger, opts ...Option) *Ledger {
    if store == nil {
        panic("nil store passed to ledger.New")
    }
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    l := &Ledger{
        store:      store,
        log:        log,
        now:        func() time.Time { return time.Now().UTC() },
        newID:      uuid.NewString,
        maxSeconds: MaxGrantSeconds,
    }
    for _, opt := range opts {
        opt(l)
    }
    return l
}

// Now exposes the ledger clock so readers compute balances against the
// same time source.
func (l *Ledger) Now() time.Time { return l.now() }

// Grant records a new credit grant and its audit entry.  Seconds are
// floored to whole seconds and must land in [1, max].  It returns the new
// grant id.
func (l *Ledger) Grant(ctx context.Context, req GrantRequest) (string, error) {
    providerID := strings.TrimSpace(req.ProviderID)
    if providerID == "" {
        return "", fmt.Errorf("%w: provider id is required", ErrInvalidInput)
    }
    if math.IsNaN(req.Seconds) || math.IsInf(req.Seconds, 0) || req.Seconds <= 0 {
        return "", fmt.Errorf("%w: seconds must be a positive number", ErrInvalidInput)
    }
    if req.Seconds > float64(l.maxSeconds) {
        return "", fmt.Errorf("%w: grant exceeds maximum allowed duration", ErrInvalidInput)
    }
    seconds := int64(math.Floor(req.Seconds))
    if seconds < 1 {
        return "", fmt.Errorf("%w: seconds must be at least 1", ErrInvalidInput)
    }

    reason := strings.TrimSpace(req.Reason)
    if reason == "" {
        reason = DefaultGrantReason
    }
    cityID := normalizeCity(req.CityID)
    now := l.now()

    grant := &model.CreditGrant{
        ID:             l.newID(),
        ProviderID:     providerID,
        CityID:         cityID,
        SecondsGranted: seconds,
        SecondsUsed:    0,
        Reason:         reason,
        CreatedAt:      now,
    }
    entry := &model.CreditAuditEntry{
        ID:           l.newID(),
        ProviderID:   providerID,
        CityID:       cityID,
        ActorID:      actorOrSystem(req.Actor),
        Action:       model.CreditActionGrant,
        SecondsDelta: seconds,
        Reason:       reason,
        Metadata:     copyMetadata(req.Metadata),
        CreatedAt:    now,
    }

    if err := l.store.CreateGrant(ctx, grant, entry); err != nil {
        metrics.CreditLedgerFailuresTotal.WithLabelValues("grant").Inc()
        l.log.Errorw("featured credit grant failed", "profile_id", providerID, "seconds", seconds, "err", err)
        return "", fmt.Errorf("%w: grant: %w", ErrPersistence, err)
    }
    metrics.CreditGrantsTotal.Inc()
    l.log.Infow("featured credit granted",
        "credit_id", grant.ID, "profile_id", providerID, "city_id", cityID,
        "seconds", seconds, "actor", entry.ActorID)
    l.notify(ctx, *entry)
    return grant.ID, nil
}

// Revoke forces the remaining balance of a grant to zero.  The audit entry
// records the seconds actually taken back at revoke time, not the original
// grant size.  Revoking an already revoked grant succeeds without writing.
func (l *Ledger) Revoke(ctx context.Context, req RevokeRequest) error {
    creditID := strings.TrimSpace(req.CreditID)
    if creditID == "" {
        return fmt.Errorf("%w: credit id is required", ErrInvalidInput)
    }
    reason := strings.TrimSpace(req.Reason)
    if reason == "" {
        reason = DefaultRevokeReason
    }

    var written model.CreditAuditEntry
    plan := func(g model.CreditGrant) model.CreditAuditEntry {
        now := l.now()
        meta := copyMetadata(req.Metadata)
        meta["credit_id"] = g.ID
        written = model.CreditAuditEntry{
            ID:           l.newID(),
            ProviderID:   g.ProviderID,
            CityID:       g.CityID,
            ActorID:      actorOrSystem(req.Actor),
            Action:       model.CreditActionRevoke,
            SecondsDelta: -RemainingSeconds(g, now),
            Reason:       reason,
            Metadata:     meta,
            CreatedAt:    now,
        }
        return written
    }

    revoked, err := l.store.RevokeGrant(ctx, creditID, plan)
    if err != nil {
        if errors.Is(err, ErrNotFound) {
            return fmt.Errorf("revoke %s: %w", creditID, ErrNotFound)
        }
        metrics.CreditLedgerFailuresTotal.WithLabelValues("revoke").Inc()
        l.log.Errorw("featured credit revoke failed", "credit_id", creditID, "err", err)
        return fmt.Errorf("%w: revoke: %w", ErrPersistence, err)
    }
    if !revoked {
        l.log.Infow("featured credit already revoked", "credit_id", creditID)
        return nil
    }
    metrics.CreditRevokesTotal.Inc()
    l.log.Infow("featured credit revoked",
        "credit_id", creditID, "profile_id", written.ProviderID,
        "seconds_delta", written.SecondsDelta, "actor", written.ActorID)
    l.notify(ctx, written)
    return nil
}

// TotalRemainingForProvider sums the balance of every grant of providerID
// that is global or scoped to cityID, floored to whole seconds.
func (l *Ledger) TotalRemainingForProvider(ctx context.Context, providerID string, cityID *string) (int64, error) {
    if strings.TrimSpace(providerID) == "" {
        return 0, fmt.Errorf("%w: provider id is required", ErrInvalidInput)
    }
    grants, err := l.store.GrantsForProviders(ctx, []string{providerID})
    if err != nil {
        return 0, err
    }
    return int64(math.Floor(TotalRemaining(grants, providerID, normalizeCity(cityID), l.now()))), nil
}

// Balance sums every grant of providerID regardless of city scope.
func (l *Ledger) Balance(ctx context.Context, providerID string) (int64, error) {
    grants, err := l.store.GrantsForProviders(ctx, []string{providerID})
    if err != nil {
        return 0, err
    }
    now := l.now()
    var total float64
    for _, g := range grants {
        total += Remaining(g, now)
    }
    return int64(math.Floor(total)), nil
}

// GrantsForProviders loads the raw grants of a batch of providers for the
// ranking engine.
func (l *Ledger) GrantsForProviders(ctx context.Context, providerIDs []string) ([]model.CreditGrant, error) {
    if len(providerIDs) == 0 {
        return nil, nil
    }
    return l.store.GrantsForProviders(ctx, providerIDs)
}

// Recent returns the newest grants with their balance at read time.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]GrantView, error) {
    grants, err := l.store.RecentGrants(ctx, limit)
    if err != nil {
        return nil, err
    }
    now := l.now()
    out := make([]GrantView, 0, len(grants))
    for _, g := range grants {
        out = append(out, GrantView{CreditGrant: g, RemainingSeconds: RemainingSeconds(g, now)})
    }
    return out, nil
}

// Audit returns the newest audit entries for providerID.
func (l *Ledger) Audit(ctx context.Context, providerID string, limit int) ([]model.CreditAuditEntry, error) {
    if strings.TrimSpace(providerID) == "" {
        return nil, fmt.Errorf("%w: provider id is required", ErrInvalidInput)
    }
    return l.store.AuditForProvider(ctx, providerID, limit)
}

func (l *Ledger) notify(ctx context.Context, entry model.CreditAuditEntry) {
    if l.notifier != nil {
        l.notifier.CreditChanged(ctx, entry)
    }
}

func normalizeCity(cityID *string) *string {
    if cityID == nil {
        return nil
    }
    c := strings.TrimSpace(*cityID)
    if c == "" {
        return nil
    }
    return &c
}

func actorOrSystem(actor string) string {
    if a := strings.TrimSpace(actor); a != "" {
        return a
    }
    return SystemActor
}

func copyMetadata(in map[string]any) map[string]any {
    out := make(map[string]any, len(in)+1)
    for k, v := range in {
        out[k] = v
    }
    return out
}
