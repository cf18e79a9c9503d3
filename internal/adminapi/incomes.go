package adminapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/montanaflynn/stats"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/common"
)

func registerIncomeRoutes() {
	webserver.ApiGET("/mercadillos/:id/incomes", listIncomes)
	webserver.ApiGET("/mercadillos/:id/incomes/stats", getIncomeStats)
	webserver.ApiPOST("/mercadillos/:id/incomes", addIncome)
	webserver.ApiPATCH("/incomes/:id", updateIncomeQuantity)
	webserver.ApiDELETE("/incomes/:id", deleteIncome)
}

func listIncomes(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	var rows []incomeLineView
	err = GetDB(c).Table("productos_mercadillo pm").
		Select("pm.id, pm.product_id, COALESCE(p.name, '') AS product_name, COALESCE(p.category, '') AS category, "+
			"COALESCE(p.image_url, '') AS image_url, pm.quantity, pm.unit_price, pm.total").
		Joins("LEFT JOIN productos p ON p.id = pm.product_id").
		Where("pm.mercadillo_id = ?", id).
		Order("pm.created_at ASC").
		Scan(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query income lines", err.Error())
	}
	return ok(c, rows)
}

type addIncomePayload struct {
	ProductID int64 `json:"product_id,string"`
	Quantity  int   `json:"quantity"`
}

// addIncome registers a sale for a product. An existing line for the
// same product grows instead of duplicating; the unit price is
// snapshotted from the catalog on first sale only.
func addIncome(c echo.Context) error {
	mercadilloID, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	var payload addIncomePayload
	if err := c.Bind(&payload); err != nil || payload.ProductID == 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Product is required", nil)
	}
	qty := payload.Quantity
	if qty < 1 {
		qty = 1
	}
	db := GetDB(c)

	var m domain.Mercadillo
	if err := db.Where("id = ?", mercadilloID).First(&m).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Mercadillo not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query mercadillo", err.Error())
	}

	var line domain.IncomeLine
	err = db.Where("mercadillo_id = ? AND product_id = ?", mercadilloID, payload.ProductID).First(&line).Error
	switch {
	case err == nil:
		line.Quantity += qty
		line.Recalc()
		line.UpdatedAt = time.Now()
		if err := db.Save(&line).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update income line", err.Error())
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		var p domain.Product
		if err := db.Where("id = ?", payload.ProductID).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
		} else if err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
		}
		now := time.Now()
		line = domain.IncomeLine{
			ID:           common.UUIDint64(),
			MercadilloID: mercadilloID,
			ProductID:    p.ID,
			Quantity:     qty,
			UnitPrice:    p.SalePrice,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		line.Recalc()
		if err := db.Create(&line).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create income line", err.Error())
		}
	default:
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query income line", err.Error())
	}

	notifySalesChanged(c, mercadilloID)
	return ok(c, line)
}

type incomeQuantityPayload struct {
	Quantity *int `json:"quantity"`
}

// updateIncomeQuantity restates a line's quantity. Zero or negative
// quantities remove the line entirely.
func updateIncomeQuantity(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid income line ID", nil)
	}
	var payload incomeQuantityPayload
	if err := c.Bind(&payload); err != nil || payload.Quantity == nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Quantity is required", nil)
	}
	db := GetDB(c)

	var line domain.IncomeLine
	if err := db.Where("id = ?", id).First(&line).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Income line not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query income line", err.Error())
	}

	if *payload.Quantity <= 0 {
		if err := db.Where("id = ?", id).Delete(&domain.IncomeLine{}).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete income line", err.Error())
		}
		notifySalesChanged(c, line.MercadilloID)
		return ok(c, map[string]interface{}{"id": id, "deleted": true})
	}

	line.Quantity = *payload.Quantity
	line.Recalc()
	line.UpdatedAt = time.Now()
	if err := db.Save(&line).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update income line", err.Error())
	}
	notifySalesChanged(c, line.MercadilloID)
	return ok(c, line)
}

func deleteIncome(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid income line ID", nil)
	}
	var line domain.IncomeLine
	if err := GetDB(c).Where("id = ?", id).First(&line).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Income line not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query income line", err.Error())
	}
	if err := GetDB(c).Where("id = ?", id).Delete(&domain.IncomeLine{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete income line", err.Error())
	}
	notifySalesChanged(c, line.MercadilloID)
	return ok(c, map[string]interface{}{"id": id})
}

type incomeStats struct {
	LineCount       int     `json:"line_count"`
	TotalQuantity   float64 `json:"total_quantity"`
	TotalIncome     float64 `json:"total_income"`
	MeanLineTotal   float64 `json:"mean_line_total"`
	MedianLineTotal float64 `json:"median_line_total"`
	MaxLineTotal    float64 `json:"max_line_total"`
}

// getIncomeStats summarises the event's sales lines.
func getIncomeStats(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	var lines []domain.IncomeLine
	if err := GetDB(c).Where("mercadillo_id = ?", id).Find(&lines).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query income lines", err.Error())
	}

	out := incomeStats{LineCount: len(lines)}
	if len(lines) == 0 {
		return ok(c, out)
	}

	totals := make([]float64, 0, len(lines))
	for _, l := range lines {
		totals = append(totals, l.Total)
		out.TotalQuantity += float64(l.Quantity)
	}
	out.TotalIncome, _ = stats.Sum(totals)
	out.MeanLineTotal, _ = stats.Mean(totals)
	out.MedianLineTotal, _ = stats.Median(totals)
	out.MaxLineTotal, _ = stats.Max(totals)
	return ok(c, out)
}
