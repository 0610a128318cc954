package config

import "time"

// LedgerConfig tunes the featured credit ledger and the referral reward.
type LedgerConfig struct {
    MaxGrantSeconds       int64         // cap for a single grant
    ReferralRewardSeconds int64         // credit granted to a referrer per attributed signup
    ReferralCityScoped    bool          // scope the reward to the referral's location instead of global
    AdminListLimit        int           // rows returned by the admin overview
    RequestTimeout        time.Duration // deadline for ledger calls made from HTTP handlers
}

// LoadLedgerConfig reads LEDGER_* and REFERRAL_* variables with defaults.
func LoadLedgerConfig() LedgerConfig {
    c := LedgerConfig{
        MaxGrantSeconds:       int64(envInt("LEDGER_MAX_GRANT_SECONDS", 31_536_000)),
        ReferralRewardSeconds: int64(envInt("REFERRAL_REWARD_SECONDS", 7*24*60*60)),
        ReferralCityScoped:    envBool("REFERRAL_REWARD_CITY_SCOPED", false),
        AdminListLimit:        envInt("LEDGER_ADMIN_LIST_LIMIT", 200),
        RequestTimeout:        envDur("LEDGER_REQUEST_TIMEOUT", 5*time.Second),
    }
    if c.MaxGrantSeconds < 1 { c.MaxGrantSeconds = 31_536_000 }
    if c.AdminListLimit < 1 { c.AdminListLimit = 200 }
    if c.RequestTimeout <= 0 { c.RequestTimeout = 5 * time.Second }
    return c
}
