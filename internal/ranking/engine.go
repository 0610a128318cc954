// Package ranking orders the listings of one location.  It is a pure
// computation over already loaded listings, reviews and credit grants plus
// an injected time; it holds no state and may be called concurrently.
package ranking

import (
    "errors"
    "math"
    "sort"
    "strings"
    "time"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// ErrInvalidInput is returned when the location id is missing.
var ErrInvalidInput = errors.New("invalid ranking input")

// Pagination bounds.
const (
    DefaultLimit = 50
    MaxLimit     = 100
)

// Accepted review ratings.
const (
    minRating = 1
    maxRating = 5
)

// Input is everything the engine needs for one location.
type Input struct {
    LocationID string
    Listings   []model.Listing
    Reviews    []model.Review       // unapproved or out-of-range ratings are skipped
    Grants     []model.CreditGrant  // grants of the listing owners
}

// RankedListing is a listing plus the fields derived for this request.
// None of the derived fields are persisted.
type RankedListing struct {
    model.Listing
    PrimaryImage             *string `json:"primary_image"`
    RemainingFeaturedSeconds int64   `json:"remaining_featured_seconds"`
    IsFeaturedEffective      bool    `json:"is_featured_effective"`
    VerificationRank         int     `json:"verification_rank"`
    QualityScore             float64 `json:"quality_score"`
    ReviewCount              int     `json:"review_count"`
    AverageRating            float64 `json:"average_rating"`
}

// Page is one slice of the ranked, filtered sequence.  Total counts the
// filtered sequence before pagination.
type Page struct {
    Listings []RankedListing `json:"listings"`
    Total    int             `json:"total"`
    Offset   int             `json:"offset"`
    Limit    int             `json:"limit"`
}

// VerificationRank maps a provider to 2 (pro), 1 (basic or verified) or 0.
func VerificationRank(p *model.Provider) int {
    if p == nil {
        return 0
    }
    switch {
    case p.VerificationTier == model.TierPro:
        return 2
    case p.VerificationTier == model.TierBasic || p.IsVerified:
        return 1
    }
    return 0
}

// PrimaryImage picks the media flagged primary, else the first one.
func PrimaryImage(media []model.Media) *string {
    for _, m := range media {
        if m.IsPrimary && m.StoragePath != "" {
            p := m.StoragePath
            return &p
        }
    }
    if len(media) > 0 && media[0].StoragePath != "" {
        p := media[0].StoragePath
        return &p
    }
    return nil
}

type reviewStats struct {
    count int
    sum   float64
}

// Rank scores every listing and returns them in display order.  The
// result is identical for identical inputs and now, whatever the order of
// the input slices.
func Rank(in Input, now time.Time, w Weights) ([]RankedListing, error) {
    locationID := strings.TrimSpace(in.LocationID)
    if locationID == "" {
        return nil, ErrInvalidInput
    }

    stats := make(map[string]reviewStats, len(in.Listings))
    for _, r := range in.Reviews {
        if r.ListingID == "" || !r.IsApproved || r.Rating < minRating || r.Rating > maxRating {
            continue
        }
        s := stats[r.ListingID]
        s.count++
        s.sum += float64(r.Rating)
        stats[r.ListingID] = s
    }

    credit := ledger.RemainingByProvider(in.Grants, &locationID, now)

    out := make([]RankedListing, 0, len(in.Listings))
    for _, l := range in.Listings {
        s := stats[l.ID]
        avg := 0.0
        if s.count > 0 {
            avg = s.sum / float64(s.count)
        }
        volume := math.Min(float64(s.count)*w.PerReview, w.VolumeCap)

        lastActive := l.UpdatedAt
        if l.Provider != nil && l.Provider.LastActiveAt != nil {
            lastActive = *l.Provider.LastActiveAt
        }
        activity := 0.0
        if !lastActive.IsZero() {
            activity = w.activityPoints(now.Sub(lastActive))
        }

        remaining := int64(math.Floor(credit[l.ProviderID]))
        rl := RankedListing{
            Listing:                  l,
            PrimaryImage:             PrimaryImage(l.Media),
            RemainingFeaturedSeconds: remaining,
            IsFeaturedEffective:      l.IsFeatured || remaining > 0,
            VerificationRank:         VerificationRank(l.Provider),
            QualityScore:             round(avg*w.RatingMultiplier+volume+activity, 4),
            ReviewCount:              s.count,
            AverageRating:            round(avg, 2),
        }
        out = append(out, rl)
    }

    sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j]) < 0 })
    return out, nil
}

// Compare orders a before b (negative) or after b (positive) by featured
// state, remaining credit, verification rank, quality score, creation time
// (newer first) and finally id.  It only returns 0 for equal ids.
func Compare(a, b RankedListing) int {
    if a.IsFeaturedEffective != b.IsFeaturedEffective {
        if a.IsFeaturedEffective {
            return -1
        }
        return 1
    }
    if c := cmpDesc(a.RemainingFeaturedSeconds, b.RemainingFeaturedSeconds); c != 0 {
        return c
    }
    if c := cmpDesc(a.VerificationRank, b.VerificationRank); c != 0 {
        return c
    }
    if c := cmpDesc(a.QualityScore, b.QualityScore); c != 0 {
        return c
    }
    if !a.CreatedAt.Equal(b.CreatedAt) {
        if a.CreatedAt.After(b.CreatedAt) {
            return -1
        }
        return 1
    }
    return strings.Compare(a.ID, b.ID)
}

func cmpDesc[T int | int64 | float64](a, b T) int {
    switch {
    case a > b:
        return -1
    case a < b:
        return 1
    }
    return 0
}

// ClampPage applies the permissive pagination policy: limit falls back to
// DefaultLimit when unset and is clamped to [1, MaxLimit]; offset is
// clamped to >= 0.
func ClampPage(limit, offset int) (int, int) {
    if limit == 0 {
        limit = DefaultLimit
    }
    if limit < 1 {
        limit = 1
    }
    if limit > MaxLimit {
        limit = MaxLimit
    }
    if offset < 0 {
        offset = 0
    }
    return limit, offset
}

// Paginate filters ranked (featured-only reads IsFeaturedEffective) and
// slices one page out of it.
func Paginate(ranked []RankedListing, featuredOnly bool, limit, offset int) Page {
    limit, offset = ClampPage(limit, offset)

    filtered := ranked
    if featuredOnly {
        filtered = make([]RankedListing, 0, len(ranked))
        for _, r := range ranked {
            if r.IsFeaturedEffective {
                filtered = append(filtered, r)
            }
        }
    }

    page := Page{Listings: []RankedListing{}, Total: len(filtered), Offset: offset, Limit: limit}
    if offset >= len(filtered) {
        return page
    }
    end := offset + limit
    if end > len(filtered) {
        end = len(filtered)
    }
    page.Listings = append(page.Listings, filtered[offset:end]...)
    return page
}

func round(v float64, places int) float64 {
    p := math.Pow(10, float64(places))
    return math.Round(v*p) / p
}
