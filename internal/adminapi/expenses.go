package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/common"
)

func registerExpenseRoutes() {
	webserver.ApiGET("/mercadillos/:id/expenses", listExpenses)
	webserver.ApiPOST("/mercadillos/:id/expenses", createExpense)
	webserver.ApiPUT("/expenses/:id", updateExpense)
	webserver.ApiDELETE("/expenses/:id", deleteExpense)
}

// listExpenses returns the event's active expenses; pass all=true to
// include soft-deleted history.
func listExpenses(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	db := GetDB(c).Where("mercadillo_id = ?", id)
	if c.QueryParam("all") != "true" {
		db = db.Where("active")
	}
	var rows []domain.ExpenseLine
	if err := db.Order("date ASC").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expenses", err.Error())
	}

	var total float64
	for _, e := range rows {
		if e.Active {
			total += e.Amount
		}
	}
	return ok(c, map[string]interface{}{"expenses": rows, "total": total})
}

type expensePayload struct {
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
	Date        string   `json:"date"`
}

func createExpense(c echo.Context) error {
	mercadilloID, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	var payload expensePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse expense", err.Error())
	}
	payload.Description = strings.TrimSpace(payload.Description)
	if payload.Description == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Description is required", nil)
	}
	if payload.Amount == nil || *payload.Amount <= 0 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Amount must be > 0", nil)
	}

	var exists int64
	if err := GetDB(c).Model(&domain.Mercadillo{}).Where("id = ?", mercadilloID).Count(&exists).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query mercadillo", err.Error())
	}
	if exists == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Mercadillo not found", nil)
	}

	now := time.Now()
	date := now
	if payload.Date != "" {
		if t, err := dateparse.ParseLocal(payload.Date); err == nil {
			date = t
		}
	}
	e := domain.ExpenseLine{
		ID:           common.UUIDint64(),
		MercadilloID: mercadilloID,
		Description:  payload.Description,
		Amount:       *payload.Amount,
		Date:         date,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := GetDB(c).Create(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create expense", err.Error())
	}
	logOperation(c, "expense_create", e.Description)
	return ok(c, e)
}

func updateExpense(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid expense ID", nil)
	}
	var e domain.ExpenseLine
	if err := GetDB(c).Where("id = ?", id).First(&e).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Expense not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expense", err.Error())
	}
	if !e.Active {
		return fail(c, http.StatusConflict, "EXPENSE_DELETED", "Cannot edit a deleted expense", nil)
	}

	var payload expensePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse expense", err.Error())
	}
	if desc := strings.TrimSpace(payload.Description); desc != "" {
		e.Description = desc
	}
	if payload.Amount != nil {
		if *payload.Amount <= 0 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Amount must be > 0", nil)
		}
		e.Amount = *payload.Amount
	}
	if payload.Date != "" {
		if t, err := dateparse.ParseLocal(payload.Date); err == nil {
			e.Date = t
		}
	}
	e.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update expense", err.Error())
	}
	return ok(c, e)
}

// deleteExpense soft-deletes: the row stays for history with Active
// flipped off.
func deleteExpense(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid expense ID", nil)
	}
	var e domain.ExpenseLine
	if err := GetDB(c).Where("id = ?", id).First(&e).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Expense not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expense", err.Error())
	}
	if !e.Active {
		return ok(c, e)
	}

	now := time.Now()
	e.SoftDelete(now)
	e.UpdatedAt = now
	if err := GetDB(c).Save(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete expense", err.Error())
	}
	logOperation(c, "expense_delete", e.Description)
	return ok(c, e)
}
