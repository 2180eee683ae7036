package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// RedisPinger is satisfied by *redis.Client.
type RedisPinger interface {
    Ping(ctx context.Context) *redis.StatusCmd
}

// HealthHandler reports whether the service and its backing stores are
// reachable.  Load balancers use it as a readiness probe.
type HealthHandler struct {
    DB    Pinger
    Redis RedisPinger // nil when rate limiting runs without Redis
}

func NewHealthHandler(db Pinger, rdb RedisPinger) *HealthHandler {
    return &HealthHandler{DB: db, Redis: rdb}
}

// Health answers 200 when the database responds and 503 otherwise.  Redis
// is reported but never fails the check; the limiter degrades without it.
func (h *HealthHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status, code := "ok", http.StatusOK
    db := "up"
    if err := h.DB.PingContext(ctx); err != nil {
        db, status, code = "down", "degraded", http.StatusServiceUnavailable
    }
    cache := "disabled"
    if h.Redis != nil {
        cache = "up"
        if err := h.Redis.Ping(ctx).Err(); err != nil {
            cache = "down"
        }
    }
    return c.JSON(code, echo.Map{"status": status, "db": db, "redis": cache})
}
