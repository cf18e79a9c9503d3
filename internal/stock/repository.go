package stock

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/openmercado/mercadillo/internal/domain"
)

// SaleLine is one income line joined with its product's current name.
type SaleLine struct {
	LineID      int64   `json:"line_id,string"`
	ProductID   int64   `json:"product_id,string"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

// EventRepository reads mercadillo records and flips the reconciled flag.
type EventRepository interface {
	// GetByID retrieves a mercadillo by ID
	GetByID(ctx context.Context, id int64) (*domain.Mercadillo, error)

	// MarkReconciled sets the stock_reconciled flag; it never clears it
	MarkReconciled(ctx context.Context, id int64) error
}

// ProductRepository reads and writes catalog stock levels.
type ProductRepository interface {
	// GetByID retrieves a product by ID
	GetByID(ctx context.Context, id int64) (*domain.Product, error)

	// UpdateStock writes a new stock quantity for a product
	UpdateStock(ctx context.Context, id int64, newStock int) error
}

// IncomeLineRepository reads the sales recorded for a mercadillo.
type IncomeLineRepository interface {
	// ListWithProducts returns all income lines for a mercadillo joined
	// with current product names, oldest first
	ListWithProducts(ctx context.Context, mercadilloID int64) ([]SaleLine, error)
}

// GormEventRepository is the GORM implementation of EventRepository
type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) GetByID(ctx context.Context, id int64) (*domain.Mercadillo, error) {
	var m domain.Mercadillo
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, errors.Wrap(err, "fetch mercadillo")
	}
	return &m, nil
}

func (r *GormEventRepository) MarkReconciled(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Mercadillo{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock_reconciled":    true,
			"stock_reconciled_at": gorm.Expr("NOW()"),
		}).Error
	return errors.Wrap(err, "mark mercadillo reconciled")
}

// GormProductRepository is the GORM implementation of ProductRepository
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProductRepository) UpdateStock(ctx context.Context, id int64, newStock int) error {
	if newStock < 0 {
		newStock = 0
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", id).
		Update("stock", newStock).Error
	return errors.Wrap(err, "update product stock")
}

// GormIncomeLineRepository is the GORM implementation of IncomeLineRepository
type GormIncomeLineRepository struct {
	db *gorm.DB
}

func NewGormIncomeLineRepository(db *gorm.DB) *GormIncomeLineRepository {
	return &GormIncomeLineRepository{db: db}
}

func (r *GormIncomeLineRepository) ListWithProducts(ctx context.Context, mercadilloID int64) ([]SaleLine, error) {
	var lines []SaleLine
	err := r.db.WithContext(ctx).
		Table("productos_mercadillo pm").
		Select("pm.id AS line_id, pm.product_id, p.name AS product_name, pm.quantity, pm.unit_price, pm.total AS line_total").
		Joins("LEFT JOIN productos p ON p.id = pm.product_id").
		Where("pm.mercadillo_id = ?", mercadilloID).
		Order("pm.created_at ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, errors.Wrap(err, "fetch income lines")
	}
	return lines, nil
}
