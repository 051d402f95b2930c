package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"coop-loan-ledger/internal/adapter/middleware"
)

const serviceName = "coop-loan-ledger"

type healthResp struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Redis   string `json:"redis"`
	Time    string `json:"time"`
}

// HealthHandler reports liveness and idempotency store reachability.
// An unreachable redis answers 503 with status "degraded".
type HealthHandler struct {
	rdb *redis.Client
}

func NewHealthHandler(rdb *redis.Client) *HealthHandler { return &HealthHandler{rdb: rdb} }

func (h *HealthHandler) Health(c echo.Context) error {
	resp := healthResp{Status: "ok", Service: serviceName, Redis: "ok", Time: time.Now().UTC().Format(time.RFC3339Nano)}
	if h.rdb == nil {
		resp.Redis = "not configured"
		return c.JSON(http.StatusOK, resp)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
	defer cancel()
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		resp.Status, resp.Redis = "degraded", "unreachable"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func forbidden(c echo.Context) error {
	return c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden"})
}

// actor is always present behind middleware.RequireActor; a missing one is a wiring bug.
func actor(c echo.Context, log *zap.Logger) (middleware.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok && log != nil {
		log.Error("route served without actor middleware", zap.String("route", c.Path()))
	}
	return a, ok
}
