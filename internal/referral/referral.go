// Package referral implements share-link referrals: capturing a visit that
// arrived through a provider's share code, attributing it to the profile
// that later signed up, and rewarding the referrer with featured credit.
package referral

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "errors"
    "fmt"
    "net/url"
    "regexp"
    "strings"

    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/marketplace-ranking/internal/metrics"
    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/queue"
    "github.com/iliyamo/marketplace-ranking/internal/repository"
)

// ErrInvalidCode is returned for malformed share or event codes.
var ErrInvalidCode = errors.New("invalid referral code")

// ErrRewardNotApplied is returned with the attributed referral when neither
// the reward event nor the inline reward went through.
var ErrRewardNotApplied = errors.New("referral reward not applied")

const (
    codeAttempts  = 5
    maxFieldChars = 120
)

var shareCodePattern = regexp.MustCompile(`^[a-z0-9]{6,32}$`)

// Referrals is the referral store.
type Referrals interface {
    Capture(ctx context.Context, ref *model.Referral) error
    Attribute(ctx context.Context, code, referredProfileID string) (model.Referral, error)
    CountsForReferrer(ctx context.Context, profileID string) (attributed, pending int64, err error)
}

// Profiles resolves and issues share codes.
type Profiles interface {
    IDByShareCode(ctx context.Context, shareCode string) (string, error)
    ShareCode(ctx context.Context, profileID string) (string, error)
    SetShareCode(ctx context.Context, profileID, code string) error
}

// Balances reports a provider's remaining featured credit.
type Balances interface {
    Balance(ctx context.Context, providerID string) (int64, error)
}

// EventPublisher announces attributed referrals.
type EventPublisher interface {
    PublishReferralAttributed(ctx context.Context, ev queue.ReferralAttributedEvent) error
}

// CaptureRequest is a visit through a share link.
type CaptureRequest struct {
    ShareCode   string
    SourceCity  string
    UTMSource   string
    UTMMedium   string
    UTMCampaign string
}

// LinkInfo is what a provider sees about their own share link.
type LinkInfo struct {
    ShareCode           string `json:"share_code"`
    ShareURL            string `json:"share_url"`
    TotalAttributed     int64  `json:"total_attributed"`
    PendingCaptures     int64  `json:"pending_captures"`
    ActiveCreditSeconds int64  `json:"active_credit_seconds"`
}

// Service runs the referral flows.
type Service struct {
    referrals Referrals
    profiles  Profiles
    balances  Balances
    publisher EventPublisher
    fallback  queue.ReferralHandler
    siteURL   string
    log       *zap.SugaredLogger
    randHex   func(nBytes int) string
}

// NewService wires the referral flows.  When publishing an attribution
// fails, fallback (usually the Rewarder) is applied inline so the reward is
// not lost; it may be nil.
func NewService(r Referrals, p Profiles, b Balances, pub EventPublisher, fallback queue.ReferralHandler, siteURL string, log *zap.SugaredLogger) *Service {
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    return &Service{
        referrals: r,
        profiles:  p,
        balances:  b,
        publisher: pub,
        fallback:  fallback,
        siteURL:   strings.TrimRight(strings.TrimSpace(siteURL), "/"),
        log:       log,
        randHex:   randomHex,
    }
}

// Capture records a visit for the owner of req.ShareCode and returns the
// event code the client keeps until signup.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (string, error) {
    shareCode := strings.ToLower(strings.TrimSpace(req.ShareCode))
    if !shareCodePattern.MatchString(shareCode) {
        return "", ErrInvalidCode
    }
    referrerID, err := s.profiles.IDByShareCode(ctx, shareCode)
    if err != nil {
        return "", err
    }

    ref := model.Referral{
        ReferrerProfileID: referrerID,
        SourceCity:        clip(req.SourceCity),
        UTMSource:         clip(req.UTMSource),
        UTMMedium:         clip(req.UTMMedium),
        UTMCampaign:       clip(req.UTMCampaign),
    }
    for attempt := 0; attempt < codeAttempts; attempt++ {
        ref.Code = "rfe_" + s.randHex(12)
        err = s.referrals.Capture(ctx, &ref)
        if err == nil {
            s.log.Infow("referral captured", "referral_id", ref.ID, "referrer_profile_id", referrerID)
            return ref.Code, nil
        }
        if !errors.Is(err, repository.ErrConflict) {
            return "", fmt.Errorf("capture referral: %w", err)
        }
    }
    return "", fmt.Errorf("capture referral: no free event code after %d attempts: %w", codeAttempts, err)
}

// Attribute links the referral identified by eventCode to profileID and
// announces it.  Each referral and each profile can be attributed once.
// When the reward could not be queued or applied, the attributed referral is
// returned together with an error wrapping ErrRewardNotApplied.
func (s *Service) Attribute(ctx context.Context, eventCode, profileID string) (model.Referral, error) {
    eventCode = strings.TrimSpace(eventCode)
    if eventCode == "" || strings.TrimSpace(profileID) == "" {
        return model.Referral{}, ErrInvalidCode
    }
    ref, err := s.referrals.Attribute(ctx, eventCode, profileID)
    if err != nil {
        return model.Referral{}, err
    }

    ev := queue.ReferralAttributedEvent{
        ReferralID:        ref.ID,
        Code:              ref.Code,
        ReferrerProfileID: ref.ReferrerProfileID,
        ReferredProfileID: profileID,
        SourceCity:        ref.SourceCity,
    }
    if ref.AttributedAt != nil {
        ev.AttributedAt = *ref.AttributedAt
    }
    err = s.publisher.PublishReferralAttributed(ctx, ev)
    if err == nil {
        return ref, nil
    }
    if s.fallback == nil {
        metrics.ReferralRewardsDroppedTotal.WithLabelValues("unpublished").Inc()
        s.log.Errorw("referral attributed but reward event was not published",
            "referral_id", ref.ID, "err", err)
        return ref, fmt.Errorf("%w: publish: %w", ErrRewardNotApplied, err)
    }
    s.log.Warnw("publishing referral event failed; rewarding inline", "referral_id", ref.ID, "err", err)
    if ferr := s.fallback.Apply(ctx, ev); ferr != nil {
        metrics.ReferralRewardsDroppedTotal.WithLabelValues("inline_failed").Inc()
        s.log.Errorw("inline referral reward failed", "referral_id", ref.ID, "err", ferr)
        return ref, fmt.Errorf("%w: %w", ErrRewardNotApplied, ferr)
    }
    return ref, nil
}

// Link returns the caller's share link, issuing a share code on first use,
// together with referral counts and the caller's active credit.
func (s *Service) Link(ctx context.Context, profileID string) (LinkInfo, error) {
    code, err := s.ensureShareCode(ctx, profileID)
    if err != nil {
        return LinkInfo{}, err
    }
    info := LinkInfo{
        ShareCode: code,
        ShareURL:  s.siteURL + "/auth/register?ref=" + url.QueryEscape(code),
    }

    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error {
        var err error
        info.TotalAttributed, info.PendingCaptures, err = s.referrals.CountsForReferrer(gctx, profileID)
        return err
    })
    g.Go(func() error {
        var err error
        info.ActiveCreditSeconds, err = s.balances.Balance(gctx, profileID)
        return err
    })
    if err := g.Wait(); err != nil {
        return LinkInfo{}, fmt.Errorf("load referral stats: %w", err)
    }
    return info, nil
}

func (s *Service) ensureShareCode(ctx context.Context, profileID string) (string, error) {
    code, err := s.profiles.ShareCode(ctx, profileID)
    if err != nil || code != "" {
        return code, err
    }
    for attempt := 0; attempt < codeAttempts; attempt++ {
        candidate := "ref" + s.randHex(6)
        err = s.profiles.SetShareCode(ctx, profileID, candidate)
        switch {
        case err == nil:
            return candidate, nil
        case errors.Is(err, repository.ErrNoChange):
            // issued concurrently, or the profile is gone
            return s.profiles.ShareCode(ctx, profileID)
        case !errors.Is(err, repository.ErrConflict):
            return "", fmt.Errorf("issue share code: %w", err)
        }
    }
    return "", fmt.Errorf("issue share code: no free code after %d attempts: %w", codeAttempts, err)
}

func clip(v string) *string {
    v = strings.TrimSpace(v)
    if v == "" {
        return nil
    }
    if r := []rune(v); len(r) > maxFieldChars {
        v = string(r[:maxFieldChars])
    }
    return &v
}

func randomHex(nBytes int) string {
    b := make([]byte, nBytes)
    _, _ = rand.Read(b)
    return hex.EncodeToString(b)
}
