package domain

import "time"

// Mercadillo lifecycle states.
const (
	MercadilloPlanned  = "planificado"
	MercadilloActive   = "activo"
	MercadilloFinished = "finalizado"
)

// Mercadillo stock update modes.
const (
	UpdateModeManual    = "manual"
	UpdateModeAutomatic = "automatico"
)

// Mercadillo is a single flea-market sales event with its own income
// and expense ledger. StockReconciled transitions false->true exactly
// once; it is never reset.
type Mercadillo struct {
	ID                int64      `json:"id,string" form:"id"`
	Name              string     `gorm:"index" json:"name" form:"name"`
	Date              time.Time  `gorm:"index" json:"date" form:"date"`
	Status            string     `gorm:"size:20;index;default:'planificado'" json:"status" form:"status"`
	StockReconciled   bool       `gorm:"default:false" json:"stock_reconciled"`
	StockReconciledAt *time.Time `json:"stock_reconciled_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	Description       string     `json:"description" form:"description"`
	UpdateMode        string     `gorm:"size:20;default:'manual'" json:"update_mode" form:"update_mode"`
	TotalSales        float64    `gorm:"default:0" json:"total_sales"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (Mercadillo) TableName() string {
	return "mercadillo"
}

// InitialStatus returns the state a new mercadillo starts in: events
// dated in the past are created already finished.
func InitialStatus(date, now time.Time) string {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		return MercadilloFinished
	}
	return MercadilloPlanned
}
