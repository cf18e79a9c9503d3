package adminapi

import (
	"net/http"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
)

func registerOprLogRoutes() {
	webserver.ApiGET("/oplogs", listOprLogs)
}

// listOprLogs returns the audit trail, newest first.
func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{})

	if action := c.QueryParam("action"); action != "" {
		db = db.Where("opt_action = ?", action)
	}
	if opr := c.QueryParam("operator"); opr != "" {
		db = db.Where("opr_name = ?", opr)
	}
	if from := c.QueryParam("from"); from != "" {
		if t, err := dateparse.ParseLocal(from); err == nil {
			db = db.Where("opt_time >= ?", t)
		}
	}
	if to := c.QueryParam("to"); to != "" {
		if t, err := dateparse.ParseLocal(to); err == nil {
			db = db.Where("opt_time <= ?", t)
		}
	}
	db = db.Order("opt_time DESC")

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query logs", err.Error())
	}
	var rows []domain.SysOprLog
	if err := db.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query logs", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
