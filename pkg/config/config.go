// Package config loads ecoroute settings from flags, ECOROUTE_* environment
// variables, an optional .env file and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/NERVsystems/ecoroute/pkg/core"
	"github.com/NERVsystems/ecoroute/pkg/mapview"
	"github.com/NERVsystems/ecoroute/pkg/osm"
	"github.com/NERVsystems/ecoroute/pkg/store"
)

// EnvPrefix is prepended to every environment variable, e.g.
// ECOROUTE_NOMINATIM_URL.
const EnvPrefix = "ECOROUTE"

// Auth types accepted for the HTTP transport.
const (
	AuthNone   = core.AuthNone
	AuthBearer = core.AuthBearer
	AuthBasic  = core.AuthBasic
)

// Config is the resolved configuration.
type Config struct {
	Debug     bool   `mapstructure:"debug"`
	UserAgent string `mapstructure:"user-agent"`

	NominatimURL   string  `mapstructure:"nominatim-url"`
	NominatimRPS   float64 `mapstructure:"nominatim-rps"`
	NominatimBurst int     `mapstructure:"nominatim-burst"`
	OSRMURL        string  `mapstructure:"osrm-url"`
	OSRMRPS        float64 `mapstructure:"osrm-rps"`
	OSRMBurst      int     `mapstructure:"osrm-burst"`

	EnableHTTP bool   `mapstructure:"enable-http"`
	HTTPOnly   bool   `mapstructure:"http-only"`
	HTTPAddr   string `mapstructure:"http-addr"`
	AuthType   string `mapstructure:"auth-type"`
	AuthToken  string `mapstructure:"auth-token"`

	EnableMonitoring bool   `mapstructure:"enable-monitoring"`
	MonitoringAddr   string `mapstructure:"monitoring-addr"`

	Store      string `mapstructure:"store"`
	SQLitePath string `mapstructure:"sqlite-path"`
	RedisAddr  string `mapstructure:"redis-addr"`

	TileURL          string `mapstructure:"tile-url"`
	TileAttribution  string `mapstructure:"tile-attribution"`
	ViewportWidth    int    `mapstructure:"viewport-width"`
	ViewportHeight   int    `mapstructure:"viewport-height"`
	SessionCacheSize int    `mapstructure:"session-cache-size"`

	DetectorSeed uint64 `mapstructure:"detector-seed"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		UserAgent:        osm.DefaultUserAgent,
		NominatimURL:     osm.NominatimBaseURL,
		NominatimRPS:     1,
		NominatimBurst:   2,
		OSRMURL:          osm.OSRMBaseURL,
		OSRMRPS:          1,
		OSRMBurst:        1,
		HTTPAddr:         ":7082",
		AuthType:         AuthNone,
		EnableMonitoring: true,
		MonitoringAddr:   ":9090",
		Store:            store.BackendMemory,
		SQLitePath:       "ecoroute.db",
		TileURL:          mapview.DefaultTileURL,
		TileAttribution:  mapview.DefaultAttribution,
		ViewportWidth:    mapview.DefaultWidthPx,
		ViewportHeight:   mapview.DefaultHeightPx,
		SessionCacheSize: 128,
	}
}

// RegisterFlags defines every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.String("config", "", "config file (default is ./ecoroute.yaml or $HOME/.ecoroute.yaml)")
	fs.Bool("debug", d.Debug, "Enable debug logging")
	fs.String("user-agent", d.UserAgent, "User-Agent string for OSM API requests")

	fs.String("nominatim-url", d.NominatimURL, "Nominatim base URL")
	fs.Float64("nominatim-rps", d.NominatimRPS, "Nominatim rate limit in requests per second")
	fs.Int("nominatim-burst", d.NominatimBurst, "Nominatim rate limit burst size")
	fs.String("osrm-url", d.OSRMURL, "OSRM base URL")
	fs.Float64("osrm-rps", d.OSRMRPS, "OSRM rate limit in requests per second")
	fs.Int("osrm-burst", d.OSRMBurst, "OSRM rate limit burst size")

	fs.Bool("enable-http", d.EnableHTTP, "Enable the HTTP transport (MCP and REST) in addition to stdio")
	fs.Bool("http-only", d.HTTPOnly, "Run the HTTP transport only, skip stdio (requires --enable-http)")
	fs.String("http-addr", d.HTTPAddr, "HTTP server address")
	fs.String("auth-type", d.AuthType, "HTTP authentication type: none, bearer, basic")
	fs.String("auth-token", d.AuthToken, "HTTP bearer token, or user:password for basic auth")

	fs.Bool("enable-monitoring", d.EnableMonitoring, "Enable Prometheus metrics and upstream health checks")
	fs.String("monitoring-addr", d.MonitoringAddr, "Monitoring server address")

	fs.String("store", d.Store, "Emissions store backend: memory, sqlite, redis")
	fs.String("sqlite-path", d.SQLitePath, "SQLite database file for --store=sqlite")
	fs.String("redis-addr", d.RedisAddr, "Redis address for --store=redis")

	fs.String("tile-url", d.TileURL, "Map tile URL template")
	fs.String("tile-attribution", d.TileAttribution, "Map tile attribution")
	fs.Int("viewport-width", d.ViewportWidth, "Map viewport width in pixels")
	fs.Int("viewport-height", d.ViewportHeight, "Map viewport height in pixels")
	fs.Int("session-cache-size", d.SessionCacheSize, "Maximum number of map sessions kept")

	fs.Uint64("detector-seed", d.DetectorSeed, "Seed for the disease classifier, 0 for random")
}

// Load resolves the configuration from fs, the environment and the config
// file. Flags set on the command line win over environment variables,
// which win over the file.
func Load(v *viper.Viper, fs *pflag.FlagSet) (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("ecoroute")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store {
	case store.BackendMemory, store.BackendSQLite:
		if c.Store == store.BackendSQLite && c.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite-path is required with store=sqlite"))
		}
	case store.BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis-addr is required with store=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q (want memory, sqlite or redis)", c.Store))
	}

	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		errs = append(errs, fmt.Errorf("viewport must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight))
	}
	if c.NominatimRPS <= 0 || c.OSRMRPS <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.NominatimBurst < 1 || c.OSRMBurst < 1 {
		errs = append(errs, errors.New("rate limit bursts must be at least 1"))
	}
	if c.HTTPOnly && !c.EnableHTTP {
		errs = append(errs, errors.New("http-only requires enable-http"))
	}

	switch c.AuthType {
	case AuthNone, "":
	case AuthBearer:
		if err := core.ValidateAuthToken(c.AuthToken); err != nil {
			errs = append(errs, fmt.Errorf("auth-token: %w", err))
		}
	case AuthBasic:
		user, pass, ok := strings.Cut(c.AuthToken, ":")
		if !ok || user == "" || pass == "" {
			errs = append(errs, errors.New("auth-token must be user:password with auth-type=basic"))
		} else if err := core.ValidateAuthToken(pass); err != nil {
			errs = append(errs, fmt.Errorf("auth-token password: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth-type %q", c.AuthType))
	}

	return errors.Join(errs...)
}

// StoreOptions selects the KV backend.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:    c.Store,
		SQLitePath: c.SQLitePath,
		RedisAddr:  c.RedisAddr,
		KeyPrefix:  "ecoroute:",
	}
}

// SurfaceOptions sizes new map surfaces.
func (c *Config) SurfaceOptions() mapview.Options {
	return mapview.Options{WidthPx: c.ViewportWidth, HeightPx: c.ViewportHeight}
}

// TileLayer is the layer registered on every surface.
func (c *Config) TileLayer() mapview.TileLayer {
	return mapview.TileLayer{URLTemplate: c.TileURL, Attribution: c.TileAttribution}
}

// Nominatim returns the Nominatim rate limit.
func (c *Config) Nominatim() osm.RateLimit {
	return osm.RateLimit{RPS: c.NominatimRPS, Burst: c.NominatimBurst}
}

// OSRM returns the OSRM rate limit.
func (c *Config) OSRM() osm.RateLimit {
	return osm.RateLimit{RPS: c.OSRMRPS, Burst: c.OSRMBurst}
}
