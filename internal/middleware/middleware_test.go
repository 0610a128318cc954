package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/marketplace-ranking/internal/config"
    "github.com/iliyamo/marketplace-ranking/internal/model"
    "github.com/iliyamo/marketplace-ranking/internal/utils"
)

const secret = "test-secret"

func protected(mw ...echo.MiddlewareFunc) *echo.Echo {
    e := echo.New()
    e.GET("/p", func(c echo.Context) error {
        return c.String(http.StatusOK, UserID(c))
    }, mw...)
    return e
}

func get(e *echo.Echo, header string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodGet, "/p", nil)
    if header != "" {
        req.Header.Set("Authorization", header)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func bearer(t *testing.T, key, sub, role string) string {
    t.Helper()
    tok, err := utils.NewAccessToken(key, sub, role, time.Hour)
    if err != nil {
        t.Fatalf("token: %v", err)
    }
    return "Bearer " + tok.Token
}

func TestJWTAuth(t *testing.T) {
    e := protected(JWTAuth(secret))

    rec := get(e, bearer(t, secret, "admin-7", model.RoleAdmin))
    if rec.Code != http.StatusOK || rec.Body.String() != "admin-7" {
        t.Fatalf("valid token: %d %s", rec.Code, rec.Body.String())
    }
    for name, h := range map[string]string{
        "missing":      "",
        "not bearer":   "Basic abc",
        "wrong secret": bearer(t, "other", "admin-7", model.RoleAdmin),
        "garbage":      "Bearer not.a.jwt",
    } {
        if rec := get(e, h); rec.Code != http.StatusUnauthorized {
            t.Errorf("%s: status %d, want 401", name, rec.Code)
        }
    }
}

func TestRequireRole(t *testing.T) {
    e := protected(JWTAuth(secret), RequireRole(model.RoleAdmin))
    if rec := get(e, bearer(t, secret, "u1", model.RoleProvider)); rec.Code != http.StatusForbidden {
        t.Fatalf("provider on admin route: %d", rec.Code)
    }
    if rec := get(e, bearer(t, secret, "u1", model.RoleAdmin)); rec.Code != http.StatusOK {
        t.Fatalf("admin on admin route: %d", rec.Code)
    }
}

func TestTokenBucketPassesThroughWhenDisabledOrUnreachable(t *testing.T) {
    cfg := config.RateLimitConfig{Enabled: false, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
    if rec := get(protected(NewTokenBucket(cfg, nil, nil)), ""); rec.Code != http.StatusOK {
        t.Fatalf("disabled limiter blocked: %d", rec.Code)
    }

    cfg.Enabled = true
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
    defer rdb.Close()
    e := protected(newTokenBucket(cfg, rdb, nil, func() time.Time { return time.Unix(0, 0) }))
    for i := 0; i < 3; i++ {
        if rec := get(e, ""); rec.Code != http.StatusOK {
            t.Fatalf("limiter must fail open when redis is down, got %d", rec.Code)
        }
    }
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/listings", nil)
    req.Header.Set("X-Real-IP", "10.0.0.9")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/v1/listings")

    cases := map[string]string{
        "ip":      "rl:listings:ip:10.0.0.9",
        "user":    "rl:listings:user:anon",
        "ip_user": "rl:listings:ip:10.0.0.9:user:anon",
        "":        "rl:listings:ip:10.0.0.9:user:anon:route:GET /v1/listings",
    }
    for strategy, want := range cases {
        cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}.For(config.RouteListings)
        if got := buildRateKey(cfg, c); got != want {
            t.Errorf("%q: got %s, want %s", strategy, got, want)
        }
    }

    c.Set(userIDKey, "p1")
    cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}.For(config.RouteReferralLink)
    if got := buildRateKey(cfg, c); got != "rl:referral_link:user:p1" {
        t.Errorf("authenticated key = %s", got)
    }
}

func TestLocalBucketBlocksAfterCapacity(t *testing.T) {
    cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour, Prefix: "rl", KeyStrategy: "ip"}
    clock := time.Unix(1_700_000_000, 0)
    e := protected(newTokenBucket(cfg, nil, nil, func() time.Time { return clock }))

    for i := 0; i < 2; i++ {
        if rec := get(e, ""); rec.Code != http.StatusOK {
            t.Fatalf("request %d: %d", i, rec.Code)
        }
    }
    rec := get(e, "")
    if rec.Code != http.StatusTooManyRequests {
        t.Fatalf("third request: %d, want 429", rec.Code)
    }
    if rec.Header().Get("Retry-After") != "60" {
        t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
    }

    clock = clock.Add(time.Minute)
    if rec := get(e, ""); rec.Code != http.StatusOK {
        t.Fatalf("after refill: %d", rec.Code)
    }
}
