package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
    db Pinger
}

// NewHealthHandler returns a HealthHandler checking db on readiness.
func NewHealthHandler(db Pinger) *HealthHandler { return &HealthHandler{db: db} }

// Health is a simple liveness endpoint used by load balancers.  It returns
// a plain text "ok" with 200 whenever the process is serving.
func (h *HealthHandler) Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready reports 503 when the database does not answer a ping within two
// seconds.
func (h *HealthHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()
    if err := h.db.PingContext(ctx); err != nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database unavailable"})
    }
    return c.String(http.StatusOK, "ready")
}
