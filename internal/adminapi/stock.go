package adminapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/openmercado/mercadillo/internal/stock"
	"github.com/openmercado/mercadillo/internal/webserver"
)

func registerStockRoutes() {
	webserver.ApiGET("/mercadillos/:id/stock/preview", previewStock)
	webserver.ApiPOST("/mercadillos/:id/stock/commit", commitStock)
	webserver.ApiGET("/mercadillos/:id/stock/report", getStockReport)
}

// previewStock returns the per-product stock changes a commit would
// apply, without touching anything.
func previewStock(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	rows, err := GetAppContext(c).StockService().Preview(c.Request().Context(), id)
	if err != nil {
		return stockError(c, err)
	}
	return ok(c, rows)
}

// commitStock applies the reconciliation and returns the item-level
// report. Repeating the call for an already reconciled event yields a
// conflict, never a second write.
func commitStock(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	report, err := GetAppContext(c).StockService().Commit(c.Request().Context(), id)
	if err != nil {
		return stockError(c, err)
	}
	logOperation(c, "stock_commit", report.MercadilloName)
	return ok(c, report)
}

// getStockReport returns the archived report of a past commit.
func getStockReport(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	store := GetAppContext(c).ReportStore()
	if store == nil {
		return fail(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Report archive is not available", nil)
	}
	report, err := store.Get(id)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to read report", err.Error())
	}
	if report == nil {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "No stock report for this mercadillo", nil)
	}
	return ok(c, report)
}

// stockError maps workflow errors onto HTTP statuses.
func stockError(c echo.Context, err error) error {
	var ineligible *stock.IneligibleError
	switch {
	case errors.As(err, &ineligible):
		return fail(c, http.StatusConflict, "NOT_ELIGIBLE", "Stock cannot be reconciled", ineligible.Reason)
	case errors.Is(err, stock.ErrNoSales):
		return fail(c, http.StatusConflict, "NO_SALES", "Mercadillo has no recorded sales", nil)
	default:
		return fail(c, http.StatusInternalServerError, "STOCK_ERROR", "Stock operation failed", err.Error())
	}
}
