package domain

import "time"

// IncomeLine records one (mercadillo, product) sale: quantity sold and
// the product's sale price snapshotted when the line was created.
// Total is always Quantity * UnitPrice, recomputed on every quantity
// change; a quantity dropping to zero removes the line instead.
type IncomeLine struct {
	ID           int64     `json:"id,string" form:"id"`
	MercadilloID int64     `gorm:"index" json:"mercadillo_id,string" form:"mercadillo_id"`
	ProductID    int64     `gorm:"index" json:"product_id,string" form:"product_id"`
	Quantity     int       `json:"quantity" form:"quantity"`
	UnitPrice    float64   `json:"unit_price" form:"unit_price"`
	Total        float64   `json:"total" form:"total"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName Specify table name
func (IncomeLine) TableName() string {
	return "productos_mercadillo"
}

// Recalc restates the line total from its own fields.
func (l *IncomeLine) Recalc() {
	l.Total = float64(l.Quantity) * l.UnitPrice
}
