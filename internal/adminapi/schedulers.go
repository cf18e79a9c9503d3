package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/common"
)

func registerSchedulerRoutes() {
	webserver.ApiGET("/schedulers", listSchedulers)
	webserver.ApiPUT("/schedulers/:id", updateScheduler)
	webserver.ApiPOST("/schedulers/:id/run", runScheduler)
}

func listSchedulers(c echo.Context) error {
	var rows []domain.SysScheduler
	if err := GetDB(c).Order("name ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query schedulers", err.Error())
	}
	return ok(c, rows)
}

type schedulerPayload struct {
	Interval *int   `json:"interval"`
	Status   string `json:"status"`
	Remark   string `json:"remark"`
}

func updateScheduler(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}
	var s domain.SysScheduler
	if err := GetDB(c).Where("id = ?", id).First(&s).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Scheduler not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query scheduler", err.Error())
	}

	var payload schedulerPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse scheduler", err.Error())
	}
	if payload.Interval != nil {
		if *payload.Interval < 10 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Interval must be at least 10 seconds", nil)
		}
		s.Interval = *payload.Interval
	}
	if payload.Status != "" {
		if payload.Status != common.ENABLED && payload.Status != common.DISABLED {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid status", payload.Status)
		}
		s.Status = payload.Status
	}
	s.Remark = payload.Remark
	s.UpdatedAt = time.Now()
	next := time.Now().Add(time.Duration(s.Interval) * time.Second)
	s.NextRunAt = &next

	if err := GetDB(c).Save(&s).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update scheduler", err.Error())
	}
	logOperation(c, "scheduler_update", s.Name)
	return ok(c, s)
}

// runScheduler triggers a task immediately, outside its interval.
func runScheduler(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid scheduler ID", nil)
	}
	if err := GetAppContext(c).RunSchedulerNow(id); err != nil {
		return fail(c, http.StatusInternalServerError, "SCHEDULER_ERROR", "Failed to run scheduler", err.Error())
	}
	logOperation(c, "scheduler_run", c.Param("id"))
	return ok(c, map[string]interface{}{"id": id, "triggered": true})
}
