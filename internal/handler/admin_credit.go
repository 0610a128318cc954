package handler

import (
    "context"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/marketplace-ranking/internal/ledger"
    "github.com/iliyamo/marketplace-ranking/internal/middleware"
    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// CreditLedger is the ledger surface the admin endpoints use.
type CreditLedger interface {
    Grant(ctx context.Context, req ledger.GrantRequest) (string, error)
    Revoke(ctx context.Context, req ledger.RevokeRequest) error
    Recent(ctx context.Context, limit int) ([]ledger.GrantView, error)
    Balance(ctx context.Context, providerID string) (int64, error)
    TotalRemainingForProvider(ctx context.Context, providerID string, cityID *string) (int64, error)
    Audit(ctx context.Context, providerID string, limit int) ([]model.CreditAuditEntry, error)
}

// RecentReferrals lists the newest referrals for the admin overview.
type RecentReferrals interface {
    Recent(ctx context.Context, limit int) ([]model.Referral, error)
}

// ActiveLocations lists the cities a grant can be scoped to.
type ActiveLocations interface {
    Active(ctx context.Context) ([]model.Location, error)
}

// CreditAdminHandler serves the featured credit admin endpoints.  Every
// mutation is attributed to the JWT subject of the caller.
type CreditAdminHandler struct {
    ledger    CreditLedger
    referrals RecentReferrals
    locations ActiveLocations
    limit     int
    timeout   time.Duration
    log       *zap.SugaredLogger
}

// NewCreditAdminHandler panics if a dependency is nil.
func NewCreditAdminHandler(l CreditLedger, r RecentReferrals, locs ActiveLocations, limit int, timeout time.Duration, log *zap.SugaredLogger) *CreditAdminHandler {
    if l == nil || r == nil || locs == nil {
        panic("nil dependency passed to NewCreditAdminHandler")
    }
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    return &CreditAdminHandler{ledger: l, referrals: r, locations: locs, limit: limit, timeout: timeout, log: log}
}

type grantCreditRequest struct {
    ProfileID string  `json:"profile_id" validate:"required"`
    CityID    *string `json:"city_id"`
    Seconds   float64 `json:"seconds" validate:"gt=0"`
    Reason    string  `json:"reason" validate:"max=500"`
}

type revokeCreditRequest struct {
    CreditID string `json:"credit_id" validate:"required"`
    Reason   string `json:"reason" validate:"max=500"`
}

func (h *CreditAdminHandler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
    if h.timeout <= 0 {
        return context.WithCancel(c.Request().Context())
    }
    return context.WithTimeout(c.Request().Context(), h.timeout)
}

// List handles GET /v1/admin/featured-credits: newest grants with their
// balance at read time, the newest referrals and the active locations for
// the grant form.
func (h *CreditAdminHandler) List(c echo.Context) error {
    ctx, cancel := h.ctx(c)
    defer cancel()

    var (
        credits   []ledger.GrantView
        referrals []model.Referral
        locations []model.Location
    )
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() (err error) {
        credits, err = h.ledger.Recent(gctx, h.limit)
        return err
    })
    g.Go(func() (err error) {
        referrals, err = h.referrals.Recent(gctx, h.limit)
        return err
    })
    g.Go(func() (err error) {
        locations, err = h.locations.Active(gctx)
        return err
    })
    if err := g.Wait(); err != nil {
        h.log.Errorw("load featured credits overview failed", "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load featured credits data"})
    }
    return c.JSON(http.StatusOK, echo.Map{"credits": credits, "referrals": referrals, "locations": locations})
}

// Grant handles POST /v1/admin/featured-credits.
func (h *CreditAdminHandler) Grant(c echo.Context) error {
    var req grantCreditRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }

    ctx, cancel := h.ctx(c)
    defer cancel()
    id, err := h.ledger.Grant(ctx, ledger.GrantRequest{
        ProviderID: req.ProfileID,
        CityID:     req.CityID,
        Seconds:    req.Seconds,
        Reason:     req.Reason,
        Actor:      middleware.UserID(c),
        Metadata:   map[string]any{"source": "admin_panel"},
    })
    if err != nil {
        return ledgerError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

// Revoke handles PATCH /v1/admin/featured-credits.
func (h *CreditAdminHandler) Revoke(c echo.Context) error {
    var req revokeCreditRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }

    ctx, cancel := h.ctx(c)
    defer cancel()
    err := h.ledger.Revoke(ctx, ledger.RevokeRequest{
        CreditID: req.CreditID,
        Reason:   req.Reason,
        Actor:    middleware.UserID(c),
        Metadata: map[string]any{"source": "admin_panel"},
    })
    if err != nil {
        return ledgerError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// ProfileCredits handles GET /v1/admin/profiles/:id/featured-credits: the
// provider's total balance and newest audit entries.  With ?city_id= it
// also reports the balance that applies in that city.
func (h *CreditAdminHandler) ProfileCredits(c echo.Context) error {
    profileID := strings.TrimSpace(c.Param("id"))
    if profileID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "profile id is required"})
    }
    ctx, cancel := h.ctx(c)
    defer cancel()

    balance, err := h.ledger.Balance(ctx, profileID)
    if err != nil {
        return ledgerError(c, err)
    }
    audit, err := h.ledger.Audit(ctx, profileID, h.limit)
    if err != nil {
        return ledgerError(c, err)
    }
    resp := echo.Map{
        "profile_id":      profileID,
        "balance_seconds": balance,
        "audit":           audit,
    }
    if city := strings.TrimSpace(c.QueryParam("city_id")); city != "" {
        inCity, err := h.ledger.TotalRemainingForProvider(ctx, profileID, &city)
        if err != nil {
            return ledgerError(c, err)
        }
        resp["city_id"] = city
        resp["city_balance_seconds"] = inCity
    }
    return c.JSON(http.StatusOK, resp)
}

// ledgerError maps the ledger taxonomy onto HTTP statuses.
func ledgerError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, ledger.ErrInvalidInput):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": strings.TrimPrefix(err.Error(), ledger.ErrInvalidInput.Error()+": ")})
    case errors.Is(err, ledger.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "featured credit not found"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "featured credit update failed"})
}
