package service

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/marketplace-ranking/internal/metrics"
    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/ranking"
)

// ErrListingsUnavailable is returned when the listings of a location could
// not be loaded.  Review and credit failures never produce it; they degrade
// to empty inputs instead.
var ErrListingsUnavailable = errors.New("listings unavailable")

// ListingSource loads the active listings of a location.
type ListingSource interface {
    ActiveByLocation(ctx context.Context, locationID string, limit int) ([]model.Listing, error)
}

// ReviewSource loads approved reviews for a batch of listings.
type ReviewSource interface {
    ApprovedByListings(ctx context.Context, listingIDs []string) ([]model.Review, error)
}

// CreditSource loads credit grants and supplies the clock balances are
// computed against.  *ledger.Ledger satisfies it.
type CreditSource interface {
    GrantsForProviders(ctx context.Context, providerIDs []string) ([]model.CreditGrant, error)
    Now() time.Time
}

// ListingService assembles ranking input from storage and returns one page
// of ranked listings.
type ListingService struct {
    listings    ListingSource
    reviews     ReviewSource
    credits     CreditSource
    weights     ranking.Weights
    maxListings int
    log         *zap.SugaredLogger
}

// NewListingService wires the sources together.  maxListings caps how many
// listings are considered per location; non-positive means the source's own
// default.
func NewListingService(l ListingSource, r ReviewSource, c CreditSource, w ranking.Weights, maxListings int, log *zap.SugaredLogger) *ListingService {
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    return &ListingService{listings: l, reviews: r, credits: c, weights: w, maxListings: maxListings, log: log}
}

// RankListings ranks every active listing of locationID and returns the
// requested page.  Reviews and credit grants are fetched concurrently.
func (s *ListingService) RankListings(ctx context.Context, locationID string, limit, offset int, featuredOnly bool) (ranking.Page, error) {
    start := time.Now()
    defer func() { metrics.RankingDuration.Observe(time.Since(start).Seconds()) }()

    locationID = strings.TrimSpace(locationID)
    if locationID == "" {
        return ranking.Page{}, ranking.ErrInvalidInput
    }
    limit, offset = ranking.ClampPage(limit, offset)

    listings, err := s.listings.ActiveByLocation(ctx, locationID, s.maxListings)
    if err != nil {
        s.log.Errorw("load listings failed", "location_id", locationID, "err", err)
        return ranking.Page{}, fmt.Errorf("%w: %w", ErrListingsUnavailable, err)
    }

    listingIDs := make([]string, 0, len(listings))
    providerSet := make(map[string]struct{}, len(listings))
    providerIDs := make([]string, 0, len(listings))
    for _, l := range listings {
        listingIDs = append(listingIDs, l.ID)
        if _, seen := providerSet[l.ProviderID]; !seen && l.ProviderID != "" {
            providerSet[l.ProviderID] = struct{}{}
            providerIDs = append(providerIDs, l.ProviderID)
        }
    }

    var (
        reviews []model.Review
        grants  []model.CreditGrant
        g       errgroup.Group
    )
    g.Go(func() error {
        rs, err := s.reviews.ApprovedByListings(ctx, listingIDs)
        if err != nil {
            s.log.Warnw("load reviews failed; ranking without reviews", "location_id", locationID, "err", err)
            return nil
        }
        reviews = rs
        return nil
    })
    g.Go(func() error {
        gs, err := s.credits.GrantsForProviders(ctx, providerIDs)
        if err != nil {
            s.log.Warnw("load featured credits failed; ranking without credits", "location_id", locationID, "err", err)
            return nil
        }
        grants = gs
        return nil
    })
    _ = g.Wait()

    ranked, err := ranking.Rank(ranking.Input{
        LocationID: locationID,
        Listings:   listings,
        Reviews:    reviews,
        Grants:     grants,
    }, s.credits.Now(), s.weights)
    if err != nil {
        return ranking.Page{}, err
    }
    metrics.RankingRequestsTotal.Inc()
    return ranking.Paginate(ranked, featuredOnly, limit, offset), nil
}
