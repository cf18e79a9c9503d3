package domain

import "time"

// Scheduler task types.
const (
	TaskAutoReconcile = "auto_reconcile"
	TaskSystemMetrics = "system_metrics"
	TaskImageGC       = "image_gc"
)

// SysScheduler is a DB-driven background task definition executed by
// the application scheduler loop when NextRunAt is due.
type SysScheduler struct {
	ID        int64      `json:"id,string" form:"id"`
	Name      string     `gorm:"index" json:"name" form:"name"`
	TaskType  string     `gorm:"size:50;index" json:"task_type" form:"task_type"`
	Interval  int        `json:"interval" form:"interval"` // seconds
	Status    string     `gorm:"size:20;index;default:'enabled'" json:"status" form:"status"`
	LastRunAt *time.Time `json:"last_run_at"`
	NextRunAt *time.Time `json:"next_run_at"`
	Remark    string     `json:"remark" form:"remark"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (SysScheduler) TableName() string {
	return "sys_scheduler"
}
