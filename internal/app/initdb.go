package app

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/openmercado/mercadillo/config"
	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/pkg/common"
)

func getDatabase(cfg config.DBConfig) *gorm.DB {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Passwd, cfg.Name, time.Local.String())

	logLevel := gormlogger.Warn
	if cfg.Debug {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		zap.S().Panicf("database connection failed: %v", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxOpenConns(cfg.MaxConn)
		sqlDB.SetMaxIdleConns(cfg.IdleConn)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db
}

func (a *Application) checkSuper() {
	const superEmail = "admin@mercadillo.local"
	const defaultPassword = "mercadillo"

	var operator domain.SysOpr
	err := a.gormDB.Where("email = ?", superEmail).First(&operator).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		hashed, herr := common.HashPassword(defaultPassword)
		if herr != nil {
			zap.L().Error("failed to hash default password", zap.Error(herr))
			return
		}
		if err := a.gormDB.Create(&domain.SysOpr{
			ID:        common.UUIDint64(),
			Realname:  "administrator",
			Email:     superEmail,
			Username:  "admin",
			Password:  hashed,
			Level:     "super",
			Status:    common.ENABLED,
			Remark:    "super",
			LastLogin: time.Now(),
		}).Error; err != nil {
			zap.L().Error("failed to create default super admin", zap.Error(err))
			return
		}
		zap.L().Info("initialized default super admin account", zap.String("email", superEmail))
	case err != nil:
		zap.L().Error("failed to query super admin", zap.Error(err))
		return
	}

	// The allow-list must always contain the super admin, or nobody can
	// sign in on a fresh install.
	var count int64
	a.gormDB.Model(&domain.SysAuthorizedUser{}).Where("email = ?", superEmail).Count(&count)
	if count == 0 {
		a.gormDB.Create(&domain.SysAuthorizedUser{
			ID:      common.UUIDint64(),
			Email:   superEmail,
			AddedBy: "system",
			Remark:  "bootstrap",
		})
	}
}

type settingSchema struct {
	Key         string
	Default     string
	Description string
}

var settingSchemas = []settingSchema{
	{Key: "catalog.categories", Default: "bisuteria,ropa,decoracion,otros", Description: "Comma-separated starter product categories"},
	{Key: "catalog.page_size", Default: "20", Description: "Default catalog page size"},
	{Key: "scheduler.auto_reconcile_enabled", Default: "true", Description: "Run automatic reconciliation for finished mercadillos in automatic mode"},
	{Key: "oplog.retention_days", Default: "90", Description: "Days to keep operation log entries"},
}

func (a *Application) checkSettings() {
	for sortid, schema := range settingSchemas {
		category, name, ok := splitSettingKey(schema.Key)
		if !ok {
			zap.L().Warn("invalid config key format", zap.String("key", schema.Key))
			continue
		}

		var count int64
		a.gormDB.Model(&domain.SysConfig{}).
			Where("type = ? and name = ?", category, name).
			Count(&count)

		if count == 0 {
			a.gormDB.Create(&domain.SysConfig{
				ID:     common.UUIDint64(),
				Sort:   sortid,
				Type:   category,
				Name:   name,
				Value:  schema.Default,
				Remark: schema.Description,
			})
			zap.L().Info("initialized config",
				zap.String("key", schema.Key),
				zap.String("default", schema.Default))
		}
	}
}

type schedulerSeed struct {
	Name     string
	TaskType string
	Interval int
	Remark   string
}

var schedulerSeeds = []schedulerSeed{
	{Name: "Auto reconcile", TaskType: domain.TaskAutoReconcile, Interval: 3600, Remark: "Reconcile finished automatic-mode mercadillos"},
	{Name: "System metrics", TaskType: domain.TaskSystemMetrics, Interval: 60, Remark: "Record CPU/memory gauges"},
	{Name: "Image GC", TaskType: domain.TaskImageGC, Interval: 86400, Remark: "Remove unreferenced product images"},
}

func (a *Application) checkSchedulers() {
	for _, seed := range schedulerSeeds {
		var count int64
		a.gormDB.Model(&domain.SysScheduler{}).
			Where("task_type = ?", seed.TaskType).
			Count(&count)
		if count > 0 {
			continue
		}
		a.gormDB.Create(&domain.SysScheduler{
			ID:       common.UUIDint64(),
			Name:     seed.Name,
			TaskType: seed.TaskType,
			Interval: seed.Interval,
			Status:   common.ENABLED,
			Remark:   seed.Remark,
		})
		zap.L().Info("initialized scheduler", zap.String("task_type", seed.TaskType))
	}
}

func splitSettingKey(key string) (category, name string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:], i > 0 && i < len(key)-1
		}
	}
	return "", "", false
}
