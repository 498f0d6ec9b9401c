// Package config loads and validates tracker configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Router  RouterConfig  `mapstructure:"router"`
	Edge    EdgeConfig    `mapstructure:"edge"`
	Page    PageConfig    `mapstructure:"page"`
	Admin   AdminConfig   `mapstructure:"admin"`
	DB      DBConfig      `mapstructure:"db"`
	GeoIP   GeoIPConfig   `mapstructure:"geoip"`
	Proxy   ProxyConfig   `mapstructure:"proxy"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listeners. OpsPort 0 disables the
// health and metrics listener.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	OpsPort           int           `mapstructure:"ops_port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// ActiveSubdomain is a hostname that bypasses tracking and its origin URL.
type ActiveSubdomain struct {
	Host   string `mapstructure:"host"`
	Origin string `mapstructure:"origin"`
}

// RouterConfig holds the routing inputs.
type RouterConfig struct {
	ActiveSubdomains []ActiveSubdomain `mapstructure:"active_subdomains"`
	AdminPath        string            `mapstructure:"admin_path"`
}

// EdgeConfig names the trusted edge headers.
type EdgeConfig struct {
	IPHeader string `mapstructure:"ip_header"`
}

// PageConfig shapes the parked page response.
type PageConfig struct {
	OperatorHeader string `mapstructure:"operator_header"`
	Operator       string `mapstructure:"operator"`
	CacheMaxAge    int    `mapstructure:"cache_max_age"`
}

// AdminConfig bounds the log query endpoint.
type AdminConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// GeoIPConfig points at optional MaxMind databases.
type GeoIPConfig struct {
	CityDB string `mapstructure:"city_db"`
	ASNDB  string `mapstructure:"asn_db"`
}

// ProxyConfig bounds pass-through requests.
type ProxyConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "TRACKER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.ops_port", 9090)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("router.active_subdomains", []map[string]any{
		{"host": "mail.bozza.au", "origin": "https://mail.bozza.au"},
		{"host": "admin.bozza.au", "origin": "https://admin.bozza.au"},
	})
	v.SetDefault("router.admin_path", "/admin/logs")
	v.SetDefault("edge.ip_header", "cf-connecting-ip")
	v.SetDefault("page.operator_header", "X-Powered-By")
	v.SetDefault("page.operator", "Bruteforce Group")
	v.SetDefault("page.cache_max_age", 3600)
	v.SetDefault("admin.default_limit", 100)
	v.SetDefault("admin.max_limit", 1000)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "visitors")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.write_timeout", 2*time.Second)
	v.SetDefault("db.read_timeout", 5*time.Second)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("geoip.city_db", "")
	v.SetDefault("geoip.asn_db", "")
	v.SetDefault("proxy.timeout", 30*time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.OpsPort < 0 {
		return fmt.Errorf("server.ops_port must be >= 0")
	}
	if c.Server.OpsPort != 0 && c.Server.OpsPort == c.Server.Port {
		return fmt.Errorf("server.ops_port must differ from server.port")
	}
	if !strings.HasPrefix(c.Router.AdminPath, "/") {
		return fmt.Errorf("router.admin_path must start with /")
	}
	seen := make(map[string]bool, len(c.Router.ActiveSubdomains))
	for i, sub := range c.Router.ActiveSubdomains {
		host := strings.ToLower(strings.TrimSpace(sub.Host))
		if host == "" {
			return fmt.Errorf("router.active_subdomains[%d].host is required", i)
		}
		if seen[host] {
			return fmt.Errorf("router.active_subdomains: duplicate host %q", host)
		}
		seen[host] = true
		u, err := url.Parse(sub.Origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("router.active_subdomains[%d].origin must be an absolute http(s) URL", i)
		}
	}
	if c.Admin.DefaultLimit <= 0 {
		return fmt.Errorf("admin.default_limit must be > 0")
	}
	if c.Admin.MaxLimit < c.Admin.DefaultLimit {
		return fmt.Errorf("admin.max_limit must be >= admin.default_limit")
	}
	if c.Page.CacheMaxAge < 0 {
		return fmt.Errorf("page.cache_max_age must be >= 0")
	}
	if !tableName.MatchString(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid identifier", c.DB.Table)
	}
	if c.DB.WriteTimeout <= 0 || c.DB.ReadTimeout <= 0 {
		return fmt.Errorf("db.write_timeout and db.read_timeout must be > 0")
	}
	if c.Proxy.Timeout <= 0 {
		return fmt.Errorf("proxy.timeout must be > 0")
	}
	return nil
}

// ActiveHosts lists the pass-through hostnames.
func (c Config) ActiveHosts() []string {
	hosts := make([]string, 0, len(c.Router.ActiveSubdomains))
	for _, sub := range c.Router.ActiveSubdomains {
		hosts = append(hosts, sub.Host)
	}
	return hosts
}

// Origins maps each pass-through hostname to its origin URL.
func (c Config) Origins() map[string]string {
	out := make(map[string]string, len(c.Router.ActiveSubdomains))
	for _, sub := range c.Router.ActiveSubdomains {
		out[sub.Host] = sub.Origin
	}
	return out
}
