package referral

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "testing"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/queue"
    "github.com/iliyamo/marketplace-ranking/internal/repository"
)

type fakeReferrals struct {
    captured   []model.Referral
    conflicts  int
    attributed model.Referral
    attrErr    error
}

func (f *fakeReferrals) Capture(_ context.Context, ref *model.Referral) error {
    if f.conflicts > 0 {
        f.conflicts--
        return repository.ErrConflict
    }
    ref.ID = uint64(len(f.captured) + 1)
    f.captured = append(f.captured, *ref)
    return nil
}

func (f *fakeReferrals) Attribute(_ context.Context, code, referred string) (model.Referral, error) {
    if f.attrErr != nil {
        return model.Referral{}, f.attrErr
    }
    r := f.attributed
    r.Code = code
    r.ReferredProfileID = &referred
    return r, nil
}

func (f *fakeReferrals) CountsForReferrer(context.Context, string) (int64, int64, error) {
    return 3, 2, nil
}

type fakeProfiles struct {
    owners    map[string]string
    codes     map[string]string
    conflicts int
}

func (f *fakeProfiles) IDByShareCode(_ context.Context, code string) (string, error) {
    if id, ok := f.owners[code]; ok {
        return id, nil
    }
    return "", repository.ErrProfileNotFound
}

func (f *fakeProfiles) ShareCode(_ context.Context, id string) (string, error) {
    return f.codes[id], nil
}

func (f *fakeProfiles) SetShareCode(_ context.Context, id, code string) error {
    if f.conflicts > 0 {
        f.conflicts--
        return repository.ErrConflict
    }
    f.codes[id] = code
    return nil
}

type fixedBalance int64

func (b fixedBalance) Balance(context.Context, string) (int64, error) { return int64(b), nil }

type fakePublisher struct {
    events []queue.ReferralAttributedEvent
    err    error
}

func (p *fakePublisher) PublishReferralAttributed(_ context.Context, ev queue.ReferralAttributedEvent) error {
    p.events = append(p.events, ev)
    return p.err
}

type fakeGranter struct {
    reqs []ledger.GrantRequest
    err  error
}

func (g *fakeGranter) Grant(_ context.Context, req ledger.GrantRequest) (string, error) {
    g.reqs = append(g.reqs, req)
    return fmt.Sprintf("c%d", len(g.reqs)), g.err
}

func counterHex() func(int) string {
    n := 0
    return func(nBytes int) string {
        n++
        return fmt.Sprintf("%0*x", nBytes*2, n)
    }
}

func newTestService(refs *fakeReferrals, profiles *fakeProfiles, pub *fakePublisher, fallback queue.ReferralHandler) *Service {
    s := NewService(refs, profiles, fixedBalance(900), pub, fallback, "https://example.test/", nil)
    s.randHex = counterHex()
    return s
}

func TestCaptureNormalisesAndRetriesOnDuplicate(t *testing.T) {
    refs := &fakeReferrals{conflicts: 2}
    profiles := &fakeProfiles{owners: map[string]string{"abc123": "p1"}}
    s := newTestService(refs, profiles, &fakePublisher{}, nil)

    code, err := s.Capture(context.Background(), CaptureRequest{
        ShareCode:  "  ABC123 ",
        SourceCity: "  " + strings.Repeat("x", 130),
        UTMSource:  "newsletter",
    })
    if err != nil {
        t.Fatalf("Capture: %v", err)
    }
    if code != "rfe_000000000000000000000003" {
        t.Fatalf("code = %s; want third generated candidate", code)
    }
    got := refs.captured[0]
    if got.ReferrerProfileID != "p1" || len(*got.SourceCity) != maxFieldChars || *got.UTMSource != "newsletter" || got.UTMMedium != nil {
        t.Fatalf("unexpected referral: %#v", got)
    }
}

func TestCaptureRejectsBadOrUnknownCodes(t *testing.T) {
    s := newTestService(&fakeReferrals{}, &fakeProfiles{owners: map[string]string{}}, &fakePublisher{}, nil)
    for _, c := range []string{"", "abc", "has space", "under_score1", strings.Repeat("a", 33)} {
        if _, err := s.Capture(context.Background(), CaptureRequest{ShareCode: c}); !errors.Is(err, ErrInvalidCode) {
            t.Errorf("%q: expected ErrInvalidCode, got %v", c, err)
        }
    }
    if _, err := s.Capture(context.Background(), CaptureRequest{ShareCode: "unknown1"}); !errors.Is(err, repository.ErrProfileNotFound) {
        t.Errorf("expected ErrProfileNotFound, got %v", err)
    }
}

func TestCaptureGivesUpAfterFiveConflicts(t *testing.T) {
    refs := &fakeReferrals{conflicts: 5}
    s := newTestService(refs, &fakeProfiles{owners: map[string]string{"abc123": "p1"}}, &fakePublisher{}, nil)
    if _, err := s.Capture(context.Background(), CaptureRequest{ShareCode: "abc123"}); !errors.Is(err, repository.ErrConflict) {
        t.Fatalf("expected conflict after retries, got %v", err)
    }
}

func TestAttributePublishesEvent(t *testing.T) {
    city := "ottawa"
    refs := &fakeReferrals{attributed: model.Referral{ID: 9, ReferrerProfileID: "p1", SourceCity: &city}}
    pub := &fakePublisher{}
    s := newTestService(refs, &fakeProfiles{}, pub, nil)

    if _, err := s.Attribute(context.Background(), "rfe_x", "p2"); err != nil {
        t.Fatalf("Attribute: %v", err)
    }
    if len(pub.events) != 1 {
        t.Fatalf("expected one event, got %d", len(pub.events))
    }
    ev := pub.events[0]
    if ev.ReferralID != 9 || ev.ReferrerProfileID != "p1" || ev.ReferredProfileID != "p2" || *ev.SourceCity != "ottawa" {
        t.Fatalf("unexpected event: %#v", ev)
    }
}

func TestAttributeRewardsInlineWhenPublishFails(t *testing.T) {
    refs := &fakeReferrals{attributed: model.Referral{ID: 9, ReferrerProfileID: "p1"}}
    granter := &fakeGranter{}
    s := newTestService(refs, &fakeProfiles{}, &fakePublisher{err: errors.New("broker down")},
        NewRewarder(granter, 604800, false, nil))

    if _, err := s.Attribute(context.Background(), "rfe_x", "p2"); err != nil {
        t.Fatalf("Attribute: %v", err)
    }
    if len(granter.reqs) != 1 || granter.reqs[0].ProviderID != "p1" {
        t.Fatalf("expected inline reward, got %#v", granter.reqs)
    }
}

func TestAttributeReportsRewardThatWasNotApplied(t *testing.T) {
    refs := &fakeReferrals{attributed: model.Referral{ID: 9, ReferrerProfileID: "p1"}}
    granter := &fakeGranter{err: ledger.ErrPersistence}
    s := newTestService(refs, &fakeProfiles{}, &fakePublisher{err: errors.New("broker down")},
        NewRewarder(granter, 604800, false, nil))

    ref, err := s.Attribute(context.Background(), "rfe_x", "p2")
    if !errors.Is(err, ErrRewardNotApplied) || !errors.Is(err, ledger.ErrPersistence) {
        t.Fatalf("expected ErrRewardNotApplied, got %v", err)
    }
    if ref.ID != 9 {
        t.Fatalf("attributed referral should still be returned, got %#v", ref)
    }

    noFallback := newTestService(refs, &fakeProfiles{}, &fakePublisher{err: errors.New("broker down")}, nil)
    if _, err := noFallback.Attribute(context.Background(), "rfe_x", "p2"); !errors.Is(err, ErrRewardNotApplied) {
        t.Fatalf("expected ErrRewardNotApplied without fallback, got %v", err)
    }
}

func TestAttributePassesStoreErrors(t *testing.T) {
    s := newTestService(&fakeReferrals{attrErr: repository.ErrConflict}, &fakeProfiles{}, &fakePublisher{}, nil)
    if _, err := s.Attribute(context.Background(), "rfe_x", "p2"); !errors.Is(err, repository.ErrConflict) {
        t.Fatalf("expected ErrConflict, got %v", err)
    }
    if _, err := s.Attribute(context.Background(), " ", "p2"); !errors.Is(err, ErrInvalidCode) {
        t.Fatalf("expected ErrInvalidCode, got %v", err)
    }
}

func TestLinkIssuesShareCodeOnce(t *testing.T) {
    profiles := &fakeProfiles{codes: map[string]string{}, conflicts: 1}
    s := newTestService(&fakeReferrals{}, profiles, &fakePublisher{}, nil)

    info, err := s.Link(context.Background(), "p1")
    if err != nil {
        t.Fatalf("Link: %v", err)
    }
    if info.ShareCode != "ref000000000002" {
        t.Fatalf("share code = %s", info.ShareCode)
    }
    if info.ShareURL != "https://example.test/auth/register?ref=ref000000000002" {
        t.Fatalf("share url = %s", info.ShareURL)
    }
    if info.TotalAttributed != 3 || info.PendingCaptures != 2 || info.ActiveCreditSeconds != 900 {
        t.Fatalf("unexpected stats: %#v", info)
    }

    again, err := s.Link(context.Background(), "p1")
    if err != nil || again.ShareCode != info.ShareCode {
        t.Fatalf("second Link = %#v, %v", again, err)
    }
}

func TestRewarderGrantsGlobalCreditByDefault(t *testing.T) {
    city := "ottawa"
    g := &fakeGranter{}
    ev := queue.ReferralAttributedEvent{Code: "rfe_x", ReferrerProfileID: "p1", ReferredProfileID: "p2", SourceCity: &city}

    if err := NewRewarder(g, 604800, false, nil).Apply(context.Background(), ev); err != nil {
        t.Fatalf("Apply: %v", err)
    }
    req := g.reqs[0]
    if req.CityID != nil || req.Seconds != 604800 || req.Actor != RewardActor {
        t.Fatalf("unexpected grant: %#v", req)
    }
    if req.Metadata["referral_code"] != "rfe_x" || req.Metadata["referred_profile_id"] != "p2" {
        t.Fatalf("unexpected metadata: %#v", req.Metadata)
    }

    if err := NewRewarder(g, 60, true, nil).Apply(context.Background(), ev); err != nil {
        t.Fatalf("Apply: %v", err)
    }
    if g.reqs[1].CityID == nil || *g.reqs[1].CityID != "ottawa" {
        t.Fatalf("city scoped reward should carry the source city")
    }
}

func TestRewarderWrapsLedgerError(t *testing.T) {
    g := &fakeGranter{err: ledger.ErrPersistence}
    err := NewRewarder(g, 60, false, nil).Apply(context.Background(), queue.ReferralAttributedEvent{Code: "rfe_x", ReferrerProfileID: "p1"})
    if !errors.Is(err, ledger.ErrPersistence) || !errors.Is(err, queue.ErrRetryable) {
        t.Fatalf("expected retryable ErrPersistence, got %v", err)
    }

    g.err = fmt.Errorf("%w: seconds must be at least 1", ledger.ErrInvalidInput)
    err = NewRewarder(g, 0, false, nil).Apply(context.Background(), queue.ReferralAttributedEvent{Code: "rfe_x", ReferrerProfileID: "p1"})
    if !errors.Is(err, ledger.ErrInvalidInput) || errors.Is(err, queue.ErrRetryable) {
        t.Fatalf("invalid grants must not be retried, got %v", err)
    }
}
