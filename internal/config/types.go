// Package config loads and watches the daemon's bootstrap configuration:
// logging, the HTTP surface, the audit trail, and the data directory. It is
// separate from the user Settings document, which the dispatcher owns.
package config

import (
	"fmt"
	"strings"

	"taskwithme/pkg/logx"
)

type Config struct {
	// DataDir overrides the per-user data directory.
	DataDir string      `json:"data_dir,omitempty"`
	Logging logx.Config `json:"logging,omitempty"`
	HTTP    HTTPConfig  `json:"http,omitempty"`
	Audit   AuditConfig `json:"audit,omitempty"`
}

type HTTPConfig struct {
	Addr string `json:"addr,omitempty"`
	// Token enables bearer-token auth when non-empty.
	Token string `json:"token,omitempty"`
	// RatePerSec bounds request rate per client; 0 disables limiting.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	RateBurst  int     `json:"rate_burst,omitempty"`
}

type AuditConfig struct {
	// Driver is "file", "sqlite", or "none"/empty to disable.
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a duration string ("5s"); sqlite only.
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

func Default() *Config {
	return &Config{
		Logging: logx.Config{Level: "info", Console: true},
		HTTP:    HTTPConfig{Addr: "127.0.0.1:8787"},
		Audit:   AuditConfig{Driver: "file"},
	}
}

// Validate rejects configs that cannot be applied. It is installed as the
// manager's validator so a bad edit never reaches subscribers.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Audit.Driver)) {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return fmt.Errorf("audit.driver: unknown driver %q", c.Audit.Driver)
	}
	if _, err := ParseDurationField("audit.busy_timeout", c.Audit.BusyTimeout); err != nil {
		return err
	}
	if c.HTTP.RatePerSec < 0 {
		return fmt.Errorf("http.rate_per_sec: must be >= 0")
	}
	if c.HTTP.RateBurst < 0 {
		return fmt.Errorf("http.rate_burst: must be >= 0")
	}
	if c.HTTP.RatePerSec > 0 && strings.TrimSpace(c.HTTP.Addr) == "" {
		return fmt.Errorf("http.addr: required")
	}
	return nil
}
