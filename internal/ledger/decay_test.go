package ledger

import (
    "testing"
    "time"

    "github.com/iliyamo/marketplace-ranking/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestRemainingDecaysWithElapsedTime(t *testing.T) {
    g := model.CreditGrant{ProviderID: "p1", SecondsGranted: 3600, CreatedAt: t0}

    cases := []struct {
        name string
        at   time.Time
        want float64
    }{
        {"at creation", t0, 3600},
        {"half way", t0.Add(1800 * time.Second), 1800},
        {"exactly expired", t0.Add(3600 * time.Second), 0},
        {"past expiry", t0.Add(3601 * time.Second), 0},
        {"clock before creation", t0.Add(-time.Hour), 3600},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if got := Remaining(g, tc.at); got != tc.want {
                t.Fatalf("Remaining = %v, want %v", got, tc.want)
            }
        })
    }
}

func TestRemainingIsMonotonic(t *testing.T) {
    g := model.CreditGrant{SecondsGranted: 500, SecondsUsed: 20, CreatedAt: t0}
    prev := Remaining(g, t0)
    for x := 1; x <= 700; x += 7 {
        cur := Remaining(g, t0.Add(time.Duration(x)*time.Second))
        if cur > prev {
            t.Fatalf("remaining grew from %v to %v at +%ds", prev, cur, x)
        }
        prev = cur
    }
    if prev != 0 {
        t.Fatalf("expected zero after full decay, got %v", prev)
    }
}

func TestRemainingClampsDrift(t *testing.T) {
    g := model.CreditGrant{SecondsGranted: 100, SecondsUsed: 250, CreatedAt: t0}
    if got := Remaining(g, t0); got != 0 {
        t.Fatalf("expected drifted grant to clamp to 0, got %v", got)
    }
}

func TestRemainingSecondsFloors(t *testing.T) {
    g := model.CreditGrant{SecondsGranted: 10, CreatedAt: t0}
    if got := RemainingSeconds(g, t0.Add(2500*time.Millisecond)); got != 7 {
        t.Fatalf("RemainingSeconds = %d, want 7", got)
    }
}

func TestTotalRemainingScopesByCity(t *testing.T) {
    grants := []model.CreditGrant{
        {ProviderID: "p1", SecondsGranted: 100, CreatedAt: t0},
        {ProviderID: "p1", CityID: strPtr("toronto"), SecondsGranted: 50, CreatedAt: t0},
        {ProviderID: "p1", CityID: strPtr("ottawa"), SecondsGranted: 30, CreatedAt: t0},
        {ProviderID: "p2", SecondsGranted: 999, CreatedAt: t0},
    }

    if got := TotalRemaining(grants, "p1", strPtr("toronto"), t0); got != 150 {
        t.Errorf("toronto total = %v, want 150", got)
    }
    if got := TotalRemaining(grants, "p1", strPtr("ottawa"), t0); got != 130 {
        t.Errorf("ottawa total = %v, want 130", got)
    }
    if got := TotalRemaining(grants, "p1", strPtr("montreal"), t0); got != 100 {
        t.Errorf("montreal total = %v, want 100", got)
    }
    if got := TotalRemaining(grants, "p1", nil, t0); got != 100 {
        t.Errorf("no city total = %v, want 100 (city grants excluded)", got)
    }
}

func TestRemainingByProvider(t *testing.T) {
    grants := []model.CreditGrant{
        {ProviderID: "p1", SecondsGranted: 100, CreatedAt: t0},
        {ProviderID: "p1", SecondsGranted: 10, SecondsUsed: 10, CreatedAt: t0},
        {ProviderID: "p2", CityID: strPtr("ottawa"), SecondsGranted: 40, CreatedAt: t0},
        {ProviderID: "", SecondsGranted: 40, CreatedAt: t0},
    }
    got := RemainingByProvider(grants, strPtr("toronto"), t0.Add(10*time.Second))
    if len(got) != 1 || got["p1"] != 90 {
        t.Fatalf("unexpected balances: %#v", got)
    }
}
