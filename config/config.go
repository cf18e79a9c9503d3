package config

import (
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Secret    string `yaml:"secret" json:"secret"`
	PublicURL string `yaml:"public_url" json:"public_url"`
}

type DBConfig struct {
	Type     string `yaml:"type" json:"type"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

type AppConfig struct {
	System   SysConfig `yaml:"system" json:"system"`
	Web      WebConfig `yaml:"web" json:"web"`
	Database DBConfig  `yaml:"database" json:"database"`
	Logger   LogConfig `yaml:"logger" json:"logger"`
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "mercadillo",
		Location: "Europe/Madrid",
		Workdir:  "/var/mercadillo",
		Debug:    true,
	},
	Web: WebConfig{
		Host:      "0.0.0.0",
		Port:      1816,
		Secret:    "mercadillo-secret",
		PublicURL: "http://127.0.0.1:1816",
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "mercadillo",
		User:     "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/mercadillo/mercadillo.log",
	},
}

func setEnvValue(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvBoolValue(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		*val = v == "true" || v == "1" || v == "on"
	}
}

func setEnvIntValue(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*val = i
		}
	}
}

// LoadConfig reads the yaml configuration file and applies
// MERCADILLO_* environment overrides. A missing file yields defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := new(AppConfig)
	*cfg = *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}

	setEnvValue("MERCADILLO_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("MERCADILLO_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBoolValue("MERCADILLO_SYSTEM_DEBUG", &cfg.System.Debug)

	setEnvValue("MERCADILLO_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("MERCADILLO_WEB_PORT", &cfg.Web.Port)
	setEnvValue("MERCADILLO_WEB_SECRET", &cfg.Web.Secret)
	setEnvValue("MERCADILLO_WEB_PUBLIC_URL", &cfg.Web.PublicURL)

	setEnvValue("MERCADILLO_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("MERCADILLO_DB_PORT", &cfg.Database.Port)
	setEnvValue("MERCADILLO_DB_NAME", &cfg.Database.Name)
	setEnvValue("MERCADILLO_DB_USER", &cfg.Database.User)
	setEnvValue("MERCADILLO_DB_PWD", &cfg.Database.Passwd)
	setEnvBoolValue("MERCADILLO_DB_DEBUG", &cfg.Database.Debug)

	setEnvValue("MERCADILLO_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvBoolValue("MERCADILLO_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)
	setEnvValue("MERCADILLO_LOGGER_FILENAME", &cfg.Logger.Filename)

	return cfg
}

// UploadsDir returns the directory where product images are stored.
func (c *AppConfig) UploadsDir() string {
	return filepath.Join(c.System.Workdir, "uploads", "products")
}
