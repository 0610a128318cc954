package model

import "time"

// Audit actions written to featured_credit_audit_logs.action.
const (
    CreditActionGrant  = "grant"
    CreditActionRevoke = "revoke"
)

// CreditGrant is a block of featured-visibility time awarded to a
// provider.  Only SecondsUsed ever changes after insert; it is set to
// SecondsGranted when the grant is revoked.  The remaining balance is
// never stored, it is derived from the creation time on every read.
//
// Fields:
//  ID             – primary key (UUID string).
//  ProviderID     – profile that owns the credit.
//  CityID         – nil for a global grant, otherwise the only location it applies to.
//  SecondsGranted – seconds awarded at creation.
//  SecondsUsed    – seconds consumed or revoked.
//  Reason         – free-text reason supplied by the caller.
//  CreatedAt      – creation timestamp; decay starts here.
type CreditGrant struct {
    ID             string    `json:"id"`              // featured_credits.id
    ProviderID     string    `json:"profile_id"`      // featured_credits.profile_id
    CityID         *string   `json:"city_id"`         // featured_credits.city_id (nullable)
    SecondsGranted int64     `json:"seconds_granted"` // featured_credits.seconds_granted
    SecondsUsed    int64     `json:"seconds_used"`    // featured_credits.seconds_used
    Reason         string    `json:"reason"`          // featured_credits.reason
    CreatedAt      time.Time `json:"created_at"`      // featured_credits.created_at
}

// Revoked reports whether the grant has been fully consumed.
func (g CreditGrant) Revoked() bool { return g.SecondsUsed >= g.SecondsGranted }

// CreditAuditEntry is the immutable record written alongside every ledger
// mutation.  SecondsDelta is positive for grants and negative for revokes.
type CreditAuditEntry struct {
    ID           string         `json:"id"`            // featured_credit_audit_logs.id
    ProviderID   string         `json:"profile_id"`    // featured_credit_audit_logs.profile_id
    CityID       *string        `json:"city_id"`       // featured_credit_audit_logs.city_id (nullable)
    ActorID      string         `json:"actor_user_id"` // featured_credit_audit_logs.actor_user_id
    Action       string         `json:"action"`        // featured_credit_audit_logs.action
    SecondsDelta int64          `json:"seconds_delta"` // featured_credit_audit_logs.seconds_delta
    Reason       string         `json:"reason"`        // featured_credit_audit_logs.reason
    Metadata     map[string]any `json:"metadata"`      // featured_credit_audit_logs.metadata (JSON)
    CreatedAt    time.Time      `json:"created_at"`    // featured_credit_audit_logs.created_at
}
