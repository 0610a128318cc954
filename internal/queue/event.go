// Package queue defines message payloads exchanged over the message broker
// and the consumer that applies them.
package queue

import "time"

// Queue names.  Both queues are durable and use the default exchange with
// the queue name as routing key.
const (
    ReferralAttributedQueue = "referral.attributed"
    CreditChangedQueue      = "featured_credit.changed"
)

// ReferralAttributedEvent is published when a referred profile is linked to
// the share-link visit that brought it in.  The consumer rewards the
// referrer with featured credit.
type ReferralAttributedEvent struct {
    ReferralID        uint64    `json:"referral_id"`
    Code              string    `json:"code"`
    ReferrerProfileID string    `json:"referrer_profile_id"`
    ReferredProfileID string    `json:"referred_profile_id"`
    SourceCity        *string   `json:"source_city,omitempty"`
    AttributedAt      time.Time `json:"attributed_at"`
}

// CreditChangedEvent mirrors one committed featured-credit audit entry so
// downstream systems can refresh cached rankings or notify the provider.
type CreditChangedEvent struct {
    AuditID      string    `json:"audit_id"`
    ProfileID    string    `json:"profile_id"`
    CityID       *string   `json:"city_id,omitempty"`
    Action       string    `json:"action"`
    SecondsDelta int64     `json:"seconds_delta"`
    ActorID      string    `json:"actor_id"`
    OccurredAt   time.Time `json:"occurred_at"`
}
