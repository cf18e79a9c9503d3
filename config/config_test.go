package config

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestLoadConfigDefaults(t *testing.T) {
	c := qt.New(t)
	cfg := LoadConfig("")
	c.Assert(cfg.System.Appid, qt.Equals, "mercadillo")
	c.Assert(cfg.Database.Type, qt.Equals, "postgres")
	c.Assert(cfg.Web.Port, qt.Equals, 1816)
}

func TestLoadConfigFile(t *testing.T) {
	c := qt.New(t)
	cfile := filepath.Join(t.TempDir(), "mercadillo.yml")
	content := []byte("web:\n  host: 10.0.0.5\n  port: 9000\ndatabase:\n  name: mercatest\n")
	c.Assert(os.WriteFile(cfile, content, 0o644), qt.IsNil)

	cfg := LoadConfig(cfile)
	c.Assert(cfg.Web.Host, qt.Equals, "10.0.0.5")
	c.Assert(cfg.Web.Port, qt.Equals, 9000)
	c.Assert(cfg.Database.Name, qt.Equals, "mercatest")
	// untouched sections keep defaults
	c.Assert(cfg.System.Location, qt.Equals, "Europe/Madrid")
}

func TestLoadConfigEnvOverride(t *testing.T) {
	c := qt.New(t)
	t.Setenv("MERCADILLO_WEB_PORT", "2817")
	t.Setenv("MERCADILLO_DB_PWD", "hunter2")
	t.Setenv("MERCADILLO_SYSTEM_DEBUG", "off")

	cfg := LoadConfig("")
	c.Assert(cfg.Web.Port, qt.Equals, 2817)
	c.Assert(cfg.Database.Passwd, qt.Equals, "hunter2")
	c.Assert(cfg.System.Debug, qt.IsFalse)
}

func TestUploadsDir(t *testing.T) {
	c := qt.New(t)
	cfg := LoadConfig("")
	cfg.System.Workdir = "/tmp/mercadillo"
	c.Assert(cfg.UploadsDir(), qt.Equals, filepath.Join("/tmp/mercadillo", "uploads", "products"))
}
