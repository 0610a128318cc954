package middleware

import "github.com/labstack/echo/v4"

const (
    userIDKey = "user_id"
    roleKey   = "role"
)

// UserID returns the authenticated subject stored by JWTAuth, or "" for
// anonymous requests.
func UserID(c echo.Context) string {
    if s, ok := c.Get(userIDKey).(string); ok {
        return s
    }
    return ""
}
