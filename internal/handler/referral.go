package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/marketplace-ranking/internal/middleware"
    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/referral"
    "github.com/iliyamo/marketplace-ranking/internal/repository"
)

// ReferralFlows is implemented by *referral.Service.
type ReferralFlows interface {
    Capture(ctx context.Context, req referral.CaptureRequest) (string, error)
    Attribute(ctx context.Context, eventCode, profileID string) (model.Referral, error)
    Link(ctx context.Context, profileID string) (referral.LinkInfo, error)
}

// ReferralHandler serves the share-link referral endpoints.
type ReferralHandler struct {
    svc ReferralFlows
    log *zap.SugaredLogger
}

// NewReferralHandler returns a ReferralHandler over svc.
func NewReferralHandler(svc ReferralFlows, log *zap.SugaredLogger) *ReferralHandler {
    if log == nil {
        log = zap.NewNop().Sugar()
    }
    return &ReferralHandler{svc: svc, log: log}
}

type captureRequest struct {
    ShareCode   string `json:"share_code" validate:"required"`
    SourceCity  string `json:"source_city"`
    UTMSource   string `json:"utm_source"`
    UTMMedium   string `json:"utm_medium"`
    UTMCampaign string `json:"utm_campaign"`
}

type attributeRequest struct {
    EventCode string `json:"referral_event_code" validate:"required"`
}

// Capture handles POST /v1/referrals/capture.  It is public: visitors are
// not signed in when they follow a share link.
func (h *ReferralHandler) Capture(c echo.Context) error {
    var req captureRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid referral code"})
    }
    code, err := h.svc.Capture(c.Request().Context(), referral.CaptureRequest{
        ShareCode:   req.ShareCode,
        SourceCity:  req.SourceCity,
        UTMSource:   req.UTMSource,
        UTMMedium:   req.UTMMedium,
        UTMCampaign: req.UTMCampaign,
    })
    switch {
    case err == nil:
        return c.JSON(http.StatusCreated, echo.Map{"referral_event_code": code})
    case errors.Is(err, referral.ErrInvalidCode):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid referral code"})
    case errors.Is(err, repository.ErrProfileNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Referral code not found"})
    }
    h.log.Errorw("referral capture failed", "err", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to capture referral"})
}

// Attribute handles POST /v1/referrals/attribute for the signed-in profile.
func (h *ReferralHandler) Attribute(c echo.Context) error {
    var req attributeRequest
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := c.Validate(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
    }
    _, err := h.svc.Attribute(c.Request().Context(), req.EventCode, middleware.UserID(c))
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, echo.Map{"success": true})
    case errors.Is(err, referral.ErrInvalidCode):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid referral code"})
    case errors.Is(err, repository.ErrReferralNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Referral not found"})
    case errors.Is(err, repository.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "Referral already attributed"})
    case errors.Is(err, referral.ErrRewardNotApplied):
        h.log.Errorw("referral attributed without reward", "err", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Referral attributed but reward could not be applied"})
    }
    h.log.Errorw("referral attribution failed", "err", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to process referral attribution"})
}

// Link handles GET /v1/referrals/link for the signed-in profile.
func (h *ReferralHandler) Link(c echo.Context) error {
    info, err := h.svc.Link(c.Request().Context(), middleware.UserID(c))
    switch {
    case err == nil:
        return c.JSON(http.StatusOK, info)
    case errors.Is(err, repository.ErrProfileNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "Profile not found"})
    }
    h.log.Errorw("referral link failed", "err", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to generate referral link"})
}
