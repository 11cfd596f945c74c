package apiv1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/common"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthGroup struct {
	redisClient *common.RedisClient
	backend     Pinger
	routerGroup *echo.Group
}

// NewHealthGroup registers the health check. Either dependency may be nil
// in local mode.
func NewHealthGroup(g *echo.Group, rdb *common.RedisClient, backend Pinger) *HealthGroup {
	group := &HealthGroup{routerGroup: g, redisClient: rdb, backend: backend}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			return h.unhealthy(c, "redis", err)
		}
	}
	if h.backend != nil {
		if err := h.backend.Ping(ctx); err != nil {
			return h.unhealthy(c, "postgres", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HealthGroup) unhealthy(c echo.Context, dep string, err error) error {
	log.Error().Err(err).Str("dependency", dep).Msg("health check failed")
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"status": "not ok",
		"error":  dep + ": " + err.Error(),
	})
}
