package app

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"go.uber.org/zap"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/stock"
	"github.com/openmercado/mercadillo/pkg/common"
	"github.com/openmercado/mercadillo/pkg/metrics"
)

// TopicSalesChanged is published whenever a mercadillo's income lines
// change; the subscriber recomputes the denormalized total.
const TopicSalesChanged = "mercadillo.sales.changed"

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	if loc == nil {
		loc = time.Local
	}
	a.sched = cron.New(cron.WithParser(cronParser), cron.WithLocation(loc))

	_, err := a.sched.AddFunc("@daily", a.trimOprLog)
	if err != nil {
		zap.L().Error("failed to register oplog trim job", zap.Error(err))
	}

	a.sched.Start()
}

// trimOprLog drops operation log entries older than the configured
// retention window.
func (a *Application) trimOprLog() {
	days := a.GetSettingsInt64Value("oplog", "retention_days")
	if days <= 0 {
		days = 90
	}
	cutoff := time.Now().AddDate(0, 0, -int(days))
	result := a.gormDB.Where("opt_time < ?", cutoff).Delete(&domain.SysOprLog{})
	if result.Error != nil {
		zap.L().Error("oplog trim failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		zap.L().Info("oplog trimmed", zap.Int64("removed", result.RowsAffected))
	}
}

// subscribeBusHandlers wires the in-process event subscribers.
func (a *Application) subscribeBusHandlers() {
	if err := a.bus.Subscribe(TopicSalesChanged, a.onSalesChanged); err != nil {
		zap.L().Error("bus subscribe failed", zap.String("topic", TopicSalesChanged), zap.Error(err))
	}
	if err := a.bus.Subscribe(stock.TopicReconciled, a.onStockReconciled); err != nil {
		zap.L().Error("bus subscribe failed", zap.String("topic", stock.TopicReconciled), zap.Error(err))
	}
}

// onSalesChanged recomputes a mercadillo's denormalized sales total
// from its income lines.
func (a *Application) onSalesChanged(mercadilloID int64) {
	var total float64
	err := a.gormDB.Model(&domain.IncomeLine{}).
		Where("mercadillo_id = ?", mercadilloID).
		Select("COALESCE(SUM(total), 0)").
		Scan(&total).Error
	if err != nil {
		zap.L().Error("sales total recompute failed",
			zap.Int64("mercadillo_id", mercadilloID), zap.Error(err))
		return
	}
	if err := a.gormDB.Model(&domain.Mercadillo{}).
		Where("id = ?", mercadilloID).
		Update("total_sales", total).Error; err != nil {
		zap.L().Error("sales total update failed",
			zap.Int64("mercadillo_id", mercadilloID), zap.Error(err))
	}
}

// onStockReconciled records an audit entry for a finished commit.
func (a *Application) onStockReconciled(report *stock.Report) {
	a.gormDB.Create(&domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   "system",
		OptAction: "stock_reconcile",
		OptDesc:   describeReport(report),
		OptTime:   time.Now(),
	})
}

func describeReport(report *stock.Report) string {
	if report.Updated == report.TotalProducts {
		return "reconciled " + report.MercadilloName + ": all products updated"
	}
	return "reconciled " + report.MercadilloName + ": partial update"
}

// recordSystemMetrics samples CPU and memory usage into the local
// time-series store.
func recordSystemMetrics() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		metrics.Gauge(metrics.MetricSystemCPU, percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		metrics.Gauge(metrics.MetricSystemMem, vm.UsedPercent)
	}
}
