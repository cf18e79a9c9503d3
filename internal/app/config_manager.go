package app

import (
	"sync"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/openmercado/mercadillo/internal/domain"
	"github.com/openmercado/mercadillo/pkg/common"
)

// DefaultSettingsCacheTTL bounds how stale a cached setting can get.
const DefaultSettingsCacheTTL = 30 * time.Second

type cachedSetting struct {
	value    string
	loadedAt time.Time
}

// ConfigManager serves runtime settings from the sys_config table with
// a small TTL cache in front.
type ConfigManager struct {
	app *Application
	mu  sync.RWMutex
	ttl time.Duration
	val map[string]cachedSetting
}

func NewConfigManager(app *Application) *ConfigManager {
	return &ConfigManager{
		app: app,
		ttl: DefaultSettingsCacheTTL,
		val: make(map[string]cachedSetting),
	}
}

func (m *ConfigManager) load(category, name string) string {
	key := category + "." + name

	m.mu.RLock()
	cached, ok := m.val[key]
	m.mu.RUnlock()
	if ok && time.Since(cached.loadedAt) < m.ttl {
		return cached.value
	}

	var cfg domain.SysConfig
	err := m.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
	if err != nil {
		return cached.value
	}

	m.mu.Lock()
	m.val[key] = cachedSetting{value: cfg.Value, loadedAt: time.Now()}
	m.mu.Unlock()
	return cfg.Value
}

func (m *ConfigManager) GetString(category, name string) string {
	return m.load(category, name)
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.load(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.load(category, name))
}

// Save upserts settings given as "category.name" -> value and drops
// the affected cache entries.
func (m *ConfigManager) Save(settings map[string]interface{}) error {
	for key, raw := range settings {
		category, name, ok := splitSettingKey(key)
		if !ok {
			zap.L().Warn("ignoring malformed setting key", zap.String("key", key))
			continue
		}
		value := cast.ToString(raw)

		var cfg domain.SysConfig
		err := m.app.gormDB.Where("type = ? and name = ?", category, name).First(&cfg).Error
		if err != nil {
			if cerr := m.app.gormDB.Create(&domain.SysConfig{
				ID:    common.UUIDint64(),
				Type:  category,
				Name:  name,
				Value: value,
			}).Error; cerr != nil {
				return cerr
			}
		} else {
			if uerr := m.app.gormDB.Model(&domain.SysConfig{}).
				Where("id = ?", cfg.ID).
				Update("value", value).Error; uerr != nil {
				return uerr
			}
		}

		m.mu.Lock()
		delete(m.val, key)
		m.mu.Unlock()
	}
	return nil
}
