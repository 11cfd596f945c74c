package scheduler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SchedulerService provides HTTP endpoints for scheduler operations
type SchedulerService struct {
	scheduler *Scheduler
}

func NewSchedulerService(scheduler *Scheduler) *SchedulerService {
	return &SchedulerService{
		scheduler: scheduler,
	}
}

// RegisterRoutes registers the scheduler HTTP routes
func (s *SchedulerService) RegisterRoutes(g *echo.Group) {
	g.GET("/schedules", s.ListSchedules)
	g.POST("/schedules/sync", s.SyncSchedules)
}

// ListSchedules handles GET /schedules
func (s *SchedulerService) ListSchedules(c echo.Context) error {
	entries := s.scheduler.Entries()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":   true,
		"schedules": entries,
		"count":     len(entries),
	})
}

// SyncSchedules handles POST /schedules/sync
func (s *SchedulerService) SyncSchedules(c echo.Context) error {
	if err := s.scheduler.Sync(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"success": false, "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "count": s.scheduler.Len()})
}
