package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestLogger writes one structured line per request.
func RequestLogger(log *zap.SugaredLogger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            req := c.Request()
            status := c.Response().Status
            fields := []interface{}{
                "method", req.Method,
                "path", c.Path(),
                "status", status,
                "latency_ms", time.Since(start).Milliseconds(),
                "ip", c.RealIP(),
            }
            if uid := UserID(c); uid != "" {
                fields = append(fields, "user_id", uid)
            }
            switch {
            case status >= 500:
                log.Errorw("request", append(fields, "err", err)...)
            case status >= 400:
                log.Warnw("request", fields...)
            default:
                log.Infow("request", fields...)
            }
            return nil
        }
    }
}
