package model

import "time"

// Referral is a captured visit through a provider's share link.  It is
// created unattributed and becomes attributed once the referred visitor
// signs up and calls the attribute endpoint.
//
// Fields:
//  ID                – primary key.
//  Code              – public event code handed to the browser (rfe_…).
//  ReferrerProfileID – profile that owns the share link.
//  ReferredProfileID – profile that signed up, nil while pending.
//  SourceCity        – free-text city the visitor landed on.
//  UTMSource/Medium/Campaign – campaign tags, nil when absent.
//  CreatedAt         – capture time.
//  AttributedAt      – attribution time, nil while pending.
type Referral struct {
    ID                uint64     `json:"id"`                  // referrals.id
    Code              string     `json:"code"`                // referrals.code
    ReferrerProfileID string     `json:"referrer_profile_id"` // referrals.referrer_profile_id
    ReferredProfileID *string    `json:"referred_profile_id"` // referrals.referred_profile_id (nullable)
    SourceCity        *string    `json:"source_city"`         // referrals.source_city (nullable)
    UTMSource         *string    `json:"utm_source"`          // referrals.utm_source (nullable)
    UTMMedium         *string    `json:"utm_medium"`          // referrals.utm_medium (nullable)
    UTMCampaign       *string    `json:"utm_campaign"`        // referrals.utm_campaign (nullable)
    CreatedAt         time.Time  `json:"created_at"`          // referrals.created_at
    AttributedAt      *time.Time `json:"attributed_at"`       // referrals.attributed_at (nullable)
}
