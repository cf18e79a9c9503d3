package adminapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/webserver"
	"github.com/openmercado/mercadillo/pkg/common"
)

type productPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SalePrice   *float64 `json:"sale_price"`
	RealCost    *float64 `json:"real_cost"`
	Stock       *int     `json:"stock"`
	Category    string   `json:"category"`
	ImageURL    string   `json:"image_url"`
}

// registerProductRoutes registers catalog CRUD endpoints
func registerProductRoutes() {
	webserver.ApiGET("/products", listProducts)
	webserver.ApiGET("/products/categories/count", countProductsByCategory)
	webserver.ApiGET("/products/export/csv", exportProductsCSV)
	webserver.ApiGET("/products/:id", getProduct)
	webserver.ApiPOST("/products", createProduct)
	webserver.ApiPUT("/products/:id", updateProduct)
	webserver.ApiDELETE("/products/:id", deleteProduct)
	webserver.ApiPATCH("/products/:id/stock", patchProductStock)
	webserver.ApiPATCH("/products/:id/price", patchProductPrice)
	webserver.ApiPOST("/products/:id/image", uploadProductImage)
}

// productQuery applies catalog filters shared by list and export.
func productQuery(c echo.Context) *gorm.DB {
	db := GetDB(c).Model(&domain.Product{})

	if category := strings.TrimSpace(c.QueryParam("category")); category != "" && category != "todos" {
		db = db.Where("category = ?", category)
	}
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + q + "%"
		db = db.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}

	switch c.QueryParam("sort") {
	case "name":
		db = db.Order("name ASC")
	case "price_asc":
		db = db.Order("sale_price ASC")
	case "price_desc":
		db = db.Order("sale_price DESC")
	default:
		db = db.Order("created_at DESC")
	}
	return db
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := productQuery(c)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	var rows []domain.Product
	if err := db.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return ok(c, p)
}

func validateProductPayload(payload *productPayload) string {
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		return "Name is required"
	}
	if payload.SalePrice != nil && *payload.SalePrice < 0 {
		return "Sale price must be >= 0"
	}
	if payload.RealCost != nil && *payload.RealCost < 0 {
		return "Real cost must be >= 0"
	}
	return ""
}

func createProduct(c echo.Context) error {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if msg := validateProductPayload(&payload); msg != "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
	}

	now := time.Now()
	p := domain.Product{
		ID:          common.UUIDint64(),
		Name:        payload.Name,
		Description: payload.Description,
		Category:    strings.TrimSpace(payload.Category),
		ImageURL:    strings.TrimSpace(payload.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if payload.SalePrice != nil {
		p.SalePrice = *payload.SalePrice
	}
	if payload.RealCost != nil {
		p.RealCost = *payload.RealCost
	}
	if payload.Stock != nil && *payload.Stock > 0 {
		p.Stock = *payload.Stock
	}
	if err := GetDB(c).Create(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", err.Error())
	}
	logOperation(c, "product_create", p.Name)
	return ok(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if msg := validateProductPayload(&payload); msg != "" {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", msg, nil)
	}

	p.Name = payload.Name
	p.Description = payload.Description
	p.Category = strings.TrimSpace(payload.Category)
	p.ImageURL = strings.TrimSpace(payload.ImageURL)
	if payload.SalePrice != nil {
		p.SalePrice = *payload.SalePrice
	}
	if payload.RealCost != nil {
		p.RealCost = *payload.RealCost
	}
	if payload.Stock != nil {
		p.Stock = *payload.Stock
		if p.Stock < 0 {
			p.Stock = 0
		}
	}
	p.UpdatedAt = time.Now()

	if err := GetDB(c).Save(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}
	return ok(c, p)
}

// deleteProduct removes a product together with its stored image.
func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	if err := GetDB(c).Where("id = ?", id).Delete(&domain.Product{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}
	if p.ImageURL != "" {
		if store := GetAppContext(c).ImageStore(); store != nil {
			_ = store.Delete(p.ImageURL)
		}
	}
	logOperation(c, "product_delete", p.Name)
	return ok(c, map[string]interface{}{"id": id})
}

type stockPatchPayload struct {
	Stock *int `json:"stock"`
}

func patchProductStock(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload stockPatchPayload
	if err := c.Bind(&payload); err != nil || payload.Stock == nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Stock is required", nil)
	}
	newStock := *payload.Stock
	if newStock < 0 {
		newStock = 0
	}

	result := GetDB(c).Model(&domain.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{"stock": newStock, "updated_at": time.Now()})
	if result.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update stock", result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}

	var p domain.Product
	GetDB(c).Where("id = ?", id).First(&p)
	return ok(c, p)
}

type pricePatchPayload struct {
	SalePrice *float64 `json:"sale_price"`
	RealCost  *float64 `json:"real_cost"`
}

func patchProductPrice(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload pricePatchPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse prices", nil)
	}
	updates := map[string]interface{}{"updated_at": time.Now()}
	if payload.SalePrice != nil {
		if *payload.SalePrice < 0 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Sale price must be >= 0", nil)
		}
		updates["sale_price"] = *payload.SalePrice
	}
	if payload.RealCost != nil {
		if *payload.RealCost < 0 {
			return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Real cost must be >= 0", nil)
		}
		updates["real_cost"] = *payload.RealCost
	}
	if len(updates) == 1 {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Nothing to update", nil)
	}

	result := GetDB(c).Model(&domain.Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update prices", result.Error.Error())
	}
	if result.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}

	var p domain.Product
	GetDB(c).Where("id = ?", id).First(&p)
	return ok(c, p)
}

// uploadProductImage stores a multipart image and binds its URL to the
// product; an earlier image is removed from the store.
func uploadProductImage(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	file, err := c.FormFile("image")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Image file is required", nil)
	}
	src, err := file.Open()
	if err != nil {
		return fail(c, http.StatusInternalServerError, "UPLOAD_ERROR", "Failed to read upload", err.Error())
	}
	defer src.Close()

	store := GetAppContext(c).ImageStore()
	if store == nil {
		return fail(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not available", nil)
	}
	url, err := store.Save(file.Filename, src)
	if err != nil {
		return fail(c, http.StatusBadRequest, "UPLOAD_ERROR", "Failed to store image", err.Error())
	}

	if p.ImageURL != "" {
		_ = store.Delete(p.ImageURL)
	}
	if err := GetDB(c).Model(&domain.Product{}).Where("id = ?", id).
		Updates(map[string]interface{}{"image_url": url, "updated_at": time.Now()}).Error; err != nil {
		_ = store.Delete(url)
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to bind image", err.Error())
	}
	return ok(c, map[string]interface{}{"id": id, "image_url": url})
}

type categoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

func countProductsByCategory(c echo.Context) error {
	var counts []categoryCount
	err := GetDB(c).Model(&domain.Product{}).
		Select("category, COUNT(*) AS count").
		Group("category").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count categories", err.Error())
	}
	return ok(c, counts)
}

type productCSVRow struct {
	Name      string  `csv:"name"`
	Category  string  `csv:"category"`
	SalePrice float64 `csv:"sale_price"`
	RealCost  float64 `csv:"real_cost"`
	Stock     int     `csv:"stock"`
	CreatedAt string  `csv:"created_at"`
}

// exportProductsCSV streams the (filtered) catalog as CSV.
func exportProductsCSV(c echo.Context) error {
	var products []domain.Product
	if err := productQuery(c).Find(&products).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}

	rows := make([]productCSVRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, productCSVRow{
			Name:      p.Name,
			Category:  p.Category,
			SalePrice: p.SalePrice,
			RealCost:  p.RealCost,
			Stock:     p.Stock,
			CreatedAt: p.CreatedAt.Format("2006-01-02"),
		})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="productos.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(rows, c.Response())
}
