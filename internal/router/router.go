package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/marketplace-ranking/internal/config"
    "github.com/iliyamo/marketplace-ranking/internal/handler"    // import the handlers that implement the endpoints
    "github.com/iliyamo/marketplace-ranking/internal/middleware" // import middleware for JWT authentication and role enforcement
    "github.com/iliyamo/marketplace-ranking/internal/model"
)

// Limit returns the rate limit middleware for a route group (see the
// config.Route* names).
type Limit func(route string) echo.MiddlewareFunc

// RegisterRoutes registers the unauthenticated operational endpoints:
// liveness, readiness and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
    e.GET("/healthz", h.Health)
    e.GET("/readyz", h.Ready)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterListings registers the public ranked listing feed.
func RegisterListings(e *echo.Echo, h *handler.ListingHandler, limit Limit) {
    e.GET("/v1/listings", h.List, limit(config.RouteListings))
}

// RegisterAdmin registers the featured credit admin surface.  Every route
// requires a valid access token with the ADMIN role; the token subject is
// recorded as the audit actor.
func RegisterAdmin(e *echo.Echo, h *handler.CreditAdminHandler, jwtSecret string, limit Limit) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(model.RoleAdmin),
        limit(config.RouteAdminCredits),
    )
    g.GET("/featured-credits", h.List)
    g.POST("/featured-credits", h.Grant)
    g.PATCH("/featured-credits", h.Revoke)
    g.GET("/profiles/:id/featured-credits", h.ProfileCredits)
}

// RegisterReferrals registers the share-link referral endpoints.  Capture
// is public; attribute and link act on the signed-in profile.
func RegisterReferrals(e *echo.Echo, h *handler.ReferralHandler, jwtSecret string, limit Limit) {
    e.POST("/v1/referrals/capture", h.Capture, limit(config.RouteReferralCapture))

    auth := e.Group("/v1/referrals", middleware.JWTAuth(jwtSecret))
    auth.POST("/attribute", h.Attribute, limit(config.RouteReferralAttribute))
    auth.GET("/link", h.Link, limit(config.RouteReferralLink))
}
