package model

import "time"

// Verification tiers stored in profiles.verification_tier.
const (
    TierNone  = "none"
    TierBasic = "basic"
    TierPro   = "pro"
)

// Provider is the profile that owns listings.  Only the fields used for
// ranking are loaded.
//
// Fields:
//  ID               – primary key (UUID string).
//  DisplayName      – public name.
//  VerificationTier – one of none, basic or pro.
//  IsVerified       – legacy verified flag; counts as basic tier.
//  LastActiveAt     – last time the provider was seen, nil when unknown.
type Provider struct {
    ID               string     `json:"id"`                       // profiles.id
    DisplayName      string     `json:"display_name"`             // profiles.display_name
    VerificationTier string     `json:"verification_tier"`        // profiles.verification_tier
    IsVerified       bool       `json:"is_verified"`              // profiles.is_verified
    LastActiveAt     *time.Time `json:"last_active_at,omitempty"` // profiles.last_active_at (nullable)
}
