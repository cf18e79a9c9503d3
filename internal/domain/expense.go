package domain

import "time"

// ExpenseLine is a per-mercadillo expense entry. Deletion is soft: the
// Active flag flips false and DeletedAt is stamped, so history is kept.
// Visibility has a single source of truth: Active.
type ExpenseLine struct {
	ID           int64      `json:"id,string" form:"id"`
	MercadilloID int64      `gorm:"index" json:"mercadillo_id,string" form:"mercadillo_id"`
	Description  string     `json:"description" form:"description"`
	Amount       float64    `json:"amount" form:"amount"`
	Date         time.Time  `gorm:"index" json:"date" form:"date"`
	Active       bool       `gorm:"index;default:true" json:"active"`
	DeletedAt    *time.Time `json:"deleted_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (ExpenseLine) TableName() string {
	return "gastos"
}

// SoftDelete marks the line inactive at t.
func (l *ExpenseLine) SoftDelete(t time.Time) {
	l.Active = false
	l.DeletedAt = &t
}
