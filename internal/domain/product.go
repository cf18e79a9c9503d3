package domain

import "time"

// Product is a catalog item. Stock never goes negative: every write
// path clamps to zero.
type Product struct {
	ID          int64     `json:"id,string" form:"id"`
	Name        string    `gorm:"index" json:"name" form:"name"`
	Description string    `json:"description" form:"description"`
	SalePrice   float64   `json:"sale_price" form:"sale_price"`
	RealCost    float64   `json:"real_cost" form:"real_cost"`
	Stock       int       `gorm:"default:0" json:"stock" form:"stock"`
	Category    string    `gorm:"size:64;index" json:"category" form:"category"`
	ImageURL    string    `gorm:"size:1024" json:"image_url" form:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "productos"
}
