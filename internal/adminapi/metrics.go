package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/metrics"
)

var metricNames = map[string]bool{
	metrics.MetricAPIRequest:      true,
	metrics.MetricStockCommit:     true,
	metrics.MetricStockCommitFail: true,
	metrics.MetricSystemCPU:       true,
	metrics.MetricSystemMem:       true,
}

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/:name", queryMetric)
}

// queryMetric returns datapoints for one metric; defaults to the last
// 24 hours.
func queryMetric(c echo.Context) error {
	name := c.Param("name")
	if !metricNames[name] {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Unknown metric", name)
	}

	end := time.Now().Unix()
	start := end - 86400
	if v, err := strconv.ParseInt(c.QueryParam("start"), 10, 64); err == nil && v > 0 {
		start = v
	}
	if v, err := strconv.ParseInt(c.QueryParam("end"), 10, 64); err == nil && v > 0 {
		end = v
	}

	points, err := metrics.Select(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metric", err.Error())
	}
	return ok(c, map[string]interface{}{"name": name, "points": points})
}
