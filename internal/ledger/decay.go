package ledger

import (
    "math"
    "time"

    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// Remaining returns the seconds still available on a grant at now.  The
// balance decays continuously from CreatedAt, so it is a function of the
// grant and the clock only:
//
//  remaining = max(0, granted - used - max(0, now - created_at))
//
// SecondsUsed drifting past SecondsGranted is tolerated and clamps to zero.
func Remaining(g model.CreditGrant, now time.Time) float64 {
    elapsed := now.Sub(g.CreatedAt).Seconds()
    if elapsed < 0 || g.CreatedAt.IsZero() {
        elapsed = 0
    }
    return math.Max(0, float64(g.SecondsGranted)-float64(g.SecondsUsed)-elapsed)
}

// RemainingSeconds is Remaining floored to whole seconds.
func RemainingSeconds(g model.CreditGrant, now time.Time) int64 {
    return int64(math.Floor(Remaining(g, now)))
}

// AppliesTo reports whether a grant counts towards cityID.  Global grants
// apply everywhere; a city-scoped grant only applies to its own city and
// never when no city is requested.
func AppliesTo(g model.CreditGrant, cityID *string) bool {
    if g.CityID == nil || *g.CityID == "" {
        return true
    }
    if cityID == nil || *cityID == "" {
        return false
    }
    return *g.CityID == *cityID
}

// TotalRemaining sums the remaining balance of providerID's grants that
// apply to cityID.  The result is not floored; callers floor once after
// summing.
func TotalRemaining(grants []model.CreditGrant, providerID string, cityID *string, now time.Time) float64 {
    var total float64
    for _, g := range grants {
        if g.ProviderID != providerID || !AppliesTo(g, cityID) {
            continue
        }
        total += Remaining(g, now)
    }
    return total
}

// RemainingByProvider computes TotalRemaining for every provider present in
// grants in a single pass.
func RemainingByProvider(grants []model.CreditGrant, cityID *string, now time.Time) map[string]float64 {
    out := make(map[string]float64)
    for _, g := range grants {
        if g.ProviderID == "" || !AppliesTo(g, cityID) {
            continue
        }
        if r := Remaining(g, now); r > 0 {
            out[g.ProviderID] += r
        }
    }
    return out
}
