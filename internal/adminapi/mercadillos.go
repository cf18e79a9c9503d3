package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/app"
	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/common"
)

type mercadilloPayload struct {
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description"`
	UpdateMode  string `json:"update_mode"`
}

func registerMercadilloRoutes() {
	webserver.ApiGET("/mercadillos", listMercadillos)
	webserver.ApiGET("/mercadillos/:id", getMercadillo)
	webserver.ApiGET("/mercadillos/:id/detail", getMercadilloDetail)
	webserver.ApiGET("/mercadillos/:id/stats", getMercadilloStats)
	webserver.ApiGET("/mercadillos/:id/export/xlsx", exportMercadilloXLSX)
	webserver.ApiPOST("/mercadillos", createMercadillo)
	webserver.ApiPUT("/mercadillos/:id", updateMercadillo)
	webserver.ApiPOST("/mercadillos/:id/status", changeMercadilloStatus)
	webserver.ApiDELETE("/mercadillos/:id", deleteMercadillo)
}

func listMercadillos(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.Mercadillo{})

	if status := c.QueryParam("status"); status != "" && status != "todos" {
		db = db.Where("status = ?", status)
	}
	if from := c.QueryParam("from"); from != "" {
		if t, err := dateparse.ParseLocal(from); err == nil {
			db = db.Where("date >= ?", t)
		}
	}
	if to := c.QueryParam("to"); to != "" {
		if t, err := dateparse.ParseLocal(to); err == nil {
			db = db.Where("date <= ?", t)
		}
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		db = db.Where("name ILIKE ?", "%"+q+"%")
	}
	db = db.Order("date DESC")

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query mercadillos", err.Error())
	}
	var rows []domain.Mercadillo
	if err := db.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query mercadillos", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func findMercadillo(c echo.Context) (*domain.Mercadillo, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid mercadillo ID", nil)
	}
	var m domain.Mercadillo
	if err := GetDB(c).Where("id = ?", id).First(&m).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fail(c, http.StatusNotFound, "NOT_FOUND", "Mercadillo not found", nil)
	} else if err != nil {
		return nil, fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query mercadillo", err.Error())
	}
	return &m, nil
}

func getMercadillo(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	return ok(c, m)
}

func createMercadillo(c echo.Context) error {
	var payload mercadilloPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse mercadillo", err.Error())
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Name is required", nil)
	}
	date, err := dateparse.ParseLocal(payload.Date)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid date", payload.Date)
	}
	mode := payload.UpdateMode
	if mode == "" {
		mode = domain.UpdateModeManual
	}
	if mode != domain.UpdateModeManual && mode != domain.UpdateModeAutomatic {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid update mode", mode)
	}

	now := time.Now()
	m := domain.Mercadillo{
		ID:          common.UUIDint64(),
		Name:        payload.Name,
		Date:        date,
		Status:      domain.InitialStatus(date, now),
		Description: payload.Description,
		UpdateMode:  mode,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if m.Status == domain.MercadilloFinished {
		m.FinishedAt = &now
	}
	if err := GetDB(c).Create(&m).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create mercadillo", err.Error())
	}
	logOperation(c, "mercadillo_create", m.Name)
	return ok(c, m)
}

func updateMercadillo(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	var payload mercadilloPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse mercadillo", err.Error())
	}
	if name := strings.TrimSpace(payload.Name); name != "" {
		m.Name = name
	}
	if payload.Date != "" {
		date, err := dateparse.ParseLocal(payload.Date)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid date", payload.Date)
		}
		m.Date = date
	}
	m.Description = payload.Description
	if payload.UpdateMode != "" {
		if payload.UpdateMode != domain.UpdateModeManual && payload.UpdateMode != domain.UpdateModeAutomatic {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid update mode", payload.UpdateMode)
		}
		m.UpdateMode = payload.UpdateMode
	}
	m.UpdatedAt = time.Now()

	if err := GetDB(c).Save(m).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update mercadillo", err.Error())
	}
	return ok(c, m)
}

type statusPayload struct {
	Status string `json:"status"`
}

// validTransitions encodes the planned -> active -> finished ladder.
var validTransitions = map[string][]string{
	domain.MercadilloPlanned:  {domain.MercadilloActive, domain.MercadilloFinished},
	domain.MercadilloActive:   {domain.MercadilloFinished},
	domain.MercadilloFinished: {},
}

func changeMercadilloStatus(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	var payload statusPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse status", err.Error())
	}

	allowed := false
	for _, next := range validTransitions[m.Status] {
		if next == payload.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fail(c, http.StatusConflict, "INVALID_TRANSITION",
			fmt.Sprintf("Cannot move from %s to %s", m.Status, payload.Status), nil)
	}

	now := time.Now()
	m.Status = payload.Status
	m.UpdatedAt = now
	if payload.Status == domain.MercadilloFinished {
		m.FinishedAt = &now
	}
	if err := GetDB(c).Save(m).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update status", err.Error())
	}
	logOperation(c, "mercadillo_status", fmt.Sprintf("%s -> %s", m.Name, m.Status))
	return ok(c, m)
}

// deleteMercadillo removes the event with its income lines; expenses
// stay as inactive history.
func deleteMercadillo(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mercadillo_id = ?", m.ID).Delete(&domain.IncomeLine{}).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&domain.ExpenseLine{}).Where("mercadillo_id = ? AND active", m.ID).
			Updates(map[string]interface{}{"active": false, "deleted_at": now, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", m.ID).Delete(&domain.Mercadillo{}).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete mercadillo", err.Error())
	}
	logOperation(c, "mercadillo_delete", m.Name)
	return ok(c, map[string]interface{}{"id": m.ID})
}

type incomeLineView struct {
	ID          int64   `json:"id,string"`
	ProductID   int64   `json:"product_id,string"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"image_url"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

type mercadilloDetail struct {
	Mercadillo    *domain.Mercadillo   `json:"mercadillo"`
	Incomes       []incomeLineView     `json:"incomes"`
	Expenses      []domain.ExpenseLine `json:"expenses"`
	Products      []domain.Product     `json:"products"`
	TotalIncome   float64              `json:"total_income"`
	TotalExpenses float64              `json:"total_expenses"`
	Net           float64              `json:"net"`
}

// getMercadilloDetail returns the event with its income lines, active
// expenses and the full catalog, fetched concurrently.
func getMercadilloDetail(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	db := GetDB(c)

	var (
		incomes  []incomeLineView
		expenses []domain.ExpenseLine
		catalog  []domain.Product
	)
	g, gctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() error {
		return db.WithContext(gctx).Table("productos_mercadillo pm").
			Select("pm.id, pm.product_id, COALESCE(p.name, '') AS product_name, COALESCE(p.category, '') AS category, "+
				"COALESCE(p.image_url, '') AS image_url, pm.quantity, pm.unit_price, pm.total").
			Joins("LEFT JOIN productos p ON p.id = pm.product_id").
			Where("pm.mercadillo_id = ?", m.ID).
			Order("pm.created_at ASC").
			Scan(&incomes).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).
			Where("mercadillo_id = ? AND active", m.ID).
			Order("date ASC").
			Find(&expenses).Error
	})
	g.Go(func() error {
		return db.WithContext(gctx).Order("name ASC").Find(&catalog).Error
	})
	if err := g.Wait(); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load mercadillo detail", err.Error())
	}

	income := decimal.Zero
	for _, line := range incomes {
		income = income.Add(decimal.NewFromFloat(line.Total))
	}
	spent := decimal.Zero
	for _, e := range expenses {
		spent = spent.Add(decimal.NewFromFloat(e.Amount))
	}

	detail := mercadilloDetail{
		Mercadillo:    m,
		Incomes:       incomes,
		Expenses:      expenses,
		Products:      catalog,
		TotalIncome:   income.InexactFloat64(),
		TotalExpenses: spent.InexactFloat64(),
		Net:           income.Sub(spent).InexactFloat64(),
	}
	return ok(c, detail)
}

type mercadilloStats struct {
	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`
	Net           float64 `json:"net"`
	ItemsSold     int64   `json:"items_sold"`
	LineCount     int64   `json:"line_count"`
	TopProduct    string  `json:"top_product"`
}

func getMercadilloStats(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	db := GetDB(c)

	var stats mercadilloStats
	row := struct {
		Income float64
		Items  int64
		Lines  int64
	}{}
	err = db.Table("productos_mercadillo").
		Select("COALESCE(SUM(total),0) AS income, COALESCE(SUM(quantity),0) AS items, COUNT(*) AS lines").
		Where("mercadillo_id = ?", m.ID).
		Scan(&row).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute stats", err.Error())
	}
	var spent float64
	err = db.Model(&domain.ExpenseLine{}).
		Select("COALESCE(SUM(amount),0)").
		Where("mercadillo_id = ? AND active", m.ID).
		Scan(&spent).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to compute stats", err.Error())
	}

	top := struct{ Name string }{}
	db.Table("productos_mercadillo pm").
		Select("COALESCE(p.name, '') AS name").
		Joins("LEFT JOIN productos p ON p.id = pm.product_id").
		Where("pm.mercadillo_id = ?", m.ID).
		Order("pm.total DESC").
		Limit(1).
		Scan(&top)

	income := decimal.NewFromFloat(row.Income)
	expensesDec := decimal.NewFromFloat(spent)
	stats.TotalIncome = income.InexactFloat64()
	stats.TotalExpenses = expensesDec.InexactFloat64()
	stats.Net = income.Sub(expensesDec).InexactFloat64()
	stats.ItemsSold = row.Items
	stats.LineCount = row.Lines
	stats.TopProduct = top.Name
	return ok(c, stats)
}

// exportMercadilloXLSX builds a two-sheet workbook (sales, expenses)
// with es-ES formatted figures.
func exportMercadilloXLSX(c echo.Context) error {
	m, err := findMercadillo(c)
	if err != nil {
		return err
	}
	var incomes []incomeLineView
	err = GetDB(c).Table("productos_mercadillo pm").
		Select("pm.id, pm.product_id, COALESCE(p.name, '') AS product_name, COALESCE(p.category, '') AS category, "+
			"pm.quantity, pm.unit_price, pm.total").
		Joins("LEFT JOIN productos p ON p.id = pm.product_id").
		Where("pm.mercadillo_id = ?", m.ID).
		Order("pm.created_at ASC").
		Scan(&incomes).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query sales", err.Error())
	}
	var expenses []domain.ExpenseLine
	err = GetDB(c).Where("mercadillo_id = ? AND active", m.ID).Order("date ASC").Find(&expenses).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expenses", err.Error())
	}

	es := message.NewPrinter(language.Spanish)
	f := excelize.NewFile()
	defer f.Close()

	sales := "Ventas"
	f.SetSheetName(f.GetSheetName(0), sales)
	_ = f.SetSheetRow(sales, "A1", &[]interface{}{"Producto", "Categoría", "Cantidad", "Precio", "Total"})
	rowIdx := 2
	totalIncome := decimal.Zero
	for _, line := range incomes {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		_ = f.SetSheetRow(sales, cell, &[]interface{}{
			line.ProductName,
			line.Category,
			line.Quantity,
			es.Sprintf("%.2f €", line.UnitPrice),
			es.Sprintf("%.2f €", line.Total),
		})
		totalIncome = totalIncome.Add(decimal.NewFromFloat(line.Total))
		rowIdx++
	}
	cell, _ := excelize.CoordinatesToCellName(1, rowIdx+1)
	_ = f.SetSheetRow(sales, cell, &[]interface{}{"Total", "", "", "", es.Sprintf("%.2f €", totalIncome.InexactFloat64())})

	gastos := "Gastos"
	_, err = f.NewSheet(gastos)
	if err == nil {
		_ = f.SetSheetRow(gastos, "A1", &[]interface{}{"Descripción", "Fecha", "Importe"})
		rowIdx = 2
		totalSpent := decimal.Zero
		for _, e := range expenses {
			cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
			_ = f.SetSheetRow(gastos, cell, &[]interface{}{
				e.Description,
				e.Date.Format("02/01/2006"),
				es.Sprintf("%.2f €", e.Amount),
			})
			totalSpent = totalSpent.Add(decimal.NewFromFloat(e.Amount))
			rowIdx++
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx+1)
		_ = f.SetSheetRow(gastos, cell, &[]interface{}{"Total", "", es.Sprintf("%.2f €", totalSpent.InexactFloat64())})
	}

	filename := fmt.Sprintf("mercadillo_%s_%s.xlsx",
		strings.ReplaceAll(strings.ToLower(m.Name), " ", "_"),
		m.Date.Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response())
}

// notifySalesChanged asks the app to restate the cached total for the
// event after any income mutation.
func notifySalesChanged(c echo.Context, mercadilloID int64) {
	GetAppContext(c).Bus().Publish(app.TopicSalesChanged, mercadilloID)
}
