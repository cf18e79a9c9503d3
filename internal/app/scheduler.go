package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/internal/stock"
	"github.com/openmercado/mercadillo/pkg/common"
)

// StartSchedulerService runs enabled schedulers periodically
func (a *Application) StartSchedulerService(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.runSchedulers(ctx)
			}
		}
	}()
}

// runSchedulers executes enabled schedulers whose next run is due
func (a *Application) runSchedulers(ctx context.Context) {
	var schedulers []domain.SysScheduler
	a.gormDB.Where("status = ?", common.ENABLED).Find(&schedulers)
	now := time.Now()
	for _, sched := range schedulers {
		if sched.NextRunAt != nil && now.Before(*sched.NextRunAt) {
			continue
		}
		a.dispatchScheduler(ctx, &sched)
		next := now.Add(time.Duration(sched.Interval) * time.Second)
		a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
			"last_run_at": now,
			"next_run_at": next,
		})
	}
}

func (a *Application) dispatchScheduler(ctx context.Context, sched *domain.SysScheduler) {
	switch sched.TaskType {
	case domain.TaskAutoReconcile:
		a.runAutoReconcile(ctx)
	case domain.TaskSystemMetrics:
		a.runSystemMetrics()
	case domain.TaskImageGC:
		a.runImageGC()
	default:
		zap.L().Warn("unknown scheduler task type", zap.String("task_type", sched.TaskType))
	}
}

// RunSchedulerNow triggers a scheduler execution immediately by ID
func (a *Application) RunSchedulerNow(id int64) error {
	var sched domain.SysScheduler
	if err := a.gormDB.First(&sched, id).Error; err != nil {
		return err
	}

	a.dispatchScheduler(context.Background(), &sched)

	now := time.Now()
	a.gormDB.Model(&domain.SysScheduler{}).Where("id = ?", sched.ID).Updates(map[string]interface{}{
		"last_run_at": now,
		"next_run_at": now.Add(time.Duration(sched.Interval) * time.Second),
	})
	return nil
}

// runAutoReconcile commits finished, unreconciled mercadillos that opted
// into automatic stock updates. The workflow's own eligibility check is
// the gate; this task only selects candidates.
func (a *Application) runAutoReconcile(ctx context.Context) {
	if !a.GetSettingsBoolValue("scheduler", "auto_reconcile_enabled") {
		return
	}

	var candidates []domain.Mercadillo
	err := a.gormDB.
		Where("status = ?", domain.MercadilloFinished).
		Where("stock_reconciled = ?", false).
		Where("update_mode = ?", domain.UpdateModeAutomatic).
		Find(&candidates).Error
	if err != nil {
		zap.L().Error("auto reconcile: query failed", zap.Error(err))
		return
	}

	for _, m := range candidates {
		report, err := a.stockService.Commit(ctx, m.ID)
		var ineligible *stock.IneligibleError
		switch {
		case errors.As(err, &ineligible):
			zap.L().Info("auto reconcile: skipped",
				zap.Int64("mercadillo_id", m.ID),
				zap.String("reason", ineligible.Reason))
		case errors.Is(err, stock.ErrNoSales):
			zap.L().Info("auto reconcile: no sales", zap.Int64("mercadillo_id", m.ID))
		case err != nil:
			zap.L().Error("auto reconcile: commit failed",
				zap.Int64("mercadillo_id", m.ID), zap.Error(err))
		default:
			zap.L().Info("auto reconcile: committed",
				zap.Int64("mercadillo_id", m.ID),
				zap.Int("updated", report.Updated),
				zap.Int("total", report.TotalProducts))
		}
	}
}

func (a *Application) runImageGC() {
	if a.imageStore == nil {
		return
	}
	var urls []string
	if err := a.gormDB.Model(&domain.Product{}).
		Where("image_url <> ''").
		Pluck("image_url", &urls).Error; err != nil {
		zap.L().Error("image gc: query failed", zap.Error(err))
		return
	}
	referenced := make(map[string]bool, len(urls))
	for _, u := range urls {
		if object := a.imageStore.ObjectName(u); object != "" {
			referenced[object] = true
		}
	}
	if removed := a.imageStore.GC(referenced); removed > 0 {
		zap.L().Info("image gc: removed orphan images", zap.Int("count", removed))
	}
}

func (a *Application) runSystemMetrics() {
	recordSystemMetrics()
}
