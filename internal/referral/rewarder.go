package referral

import (
    "context"
    "errors"
    "fmt"

    "go.uber.org/zap"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/queue"
)

// RewardActor is the audit actor recorded for referral rewards.
const RewardActor = "system:referral"

// Granter is the part of the ledger the rewarder needs.
type Granter interface {
    Grant(ctx context.Context, req ledger.GrantRequest) (string, error)
}

// Rewarder grants featured credit to the referrer of an attributed signup.
// It implements queue.ReferralHandler.
type Rewarder struct {
    ledger     Granter
    seconds    int64
    cityScoped bool
    log        *zap.SugaredLogger
}

var _ queue.ReferralHandler = (*Rewarder)(nil)

// NewRewarder returns a Rewarder granting seconds per referral.  With
// cityScoped the grant is limited to the referral's source city when one
// was captured; otherwise it is global.
func NewRewarder(g Granter, seconds int64, cityScoped bool, log *zap.SugaredLogger) *Rewarder {
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    return &Rewarder{ledger: g, seconds: seconds, cityScoped: cityScoped, log: log}
}

// Apply grants the reward for ev.  Persistence failures are marked
// retryable for the consumer; invalid grants are not.
func (r *Rewarder) Apply(ctx context.Context, ev queue.ReferralAttributedEvent) error {
    req := ledger.GrantRequest{
        ProviderID: ev.ReferrerProfileID,
        Seconds:    float64(r.seconds),
        Reason:     "Referral reward",
        Actor:      RewardActor,
        Metadata: map[string]any{
            "source":              "referral",
            "referral_code":       ev.Code,
            "referred_profile_id": ev.ReferredProfileID,
        },
    }
    if r.cityScoped && ev.SourceCity != nil {
        req.CityID = ev.SourceCity
    }
    id, err := r.ledger.Grant(ctx, req)
    if errors.Is(err, ledger.ErrPersistence) {
        return fmt.Errorf("referral reward for %s: %w: %w", ev.Code, queue.ErrRetryable, err)
    }
    if err != nil {
        return fmt.Errorf("referral reward for %s: %w", ev.Code, err)
    }
    r.log.Infow("referral reward granted",
        "credit_id", id, "referrer_profile_id", ev.ReferrerProfileID, "referral_code", ev.Code)
    return nil
}
