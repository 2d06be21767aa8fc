// Package config loads the console configuration from an optional file, a
// .env file and MARAUDR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/maraudr/console/internal/stockapi"
)

// EnvPrefix prefixes every environment override, e.g. MARAUDR_STOCK_ORIGIN.
const EnvPrefix = "MARAUDR"

// Deployment profiles of the stock backend. Production serves the API one
// path segment below the origin.
var profiles = map[string]stockapi.Profile{
	"local":      {Prefix: "", ItemsPath: "items"},
	"production": {Prefix: "/stock", ItemsPath: "items"},
}

// Config is the console configuration, read from the config file and
// MARAUDR_ environment variables.
type Config struct {
	App struct {
		Env     string
		LogFile string `mapstructure:"log_file"`
	} `mapstructure:"app"`

	HTTP struct {
		Addr          string
		SecureCookies bool `mapstructure:"secure_cookies"`
	} `mapstructure:"http"`

	DB struct {
		Path string
	} `mapstructure:"db"`

	Stock struct {
		Origin        string
		Profile       string
		Prefix        string // overrides the profile's prefix when set
		ItemsPath     string `mapstructure:"items_path"`
		QuantityRoute string `mapstructure:"quantity_route"`
		Timeout       time.Duration
	} `mapstructure:"stock"`

	Association struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout time.Duration
	} `mapstructure:"association"`

	Session struct {
		TTL time.Duration
	} `mapstructure:"session"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_file", "")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.secure_cookies", false)
	v.SetDefault("db.path", "maraudr.sqlite3")
	v.SetDefault("stock.origin", "http://localhost:5000")
	v.SetDefault("stock.profile", "local")
	v.SetDefault("stock.prefix", "")
	v.SetDefault("stock.items_path", "")
	v.SetDefault("stock.quantity_route", string(stockapi.QuantityRouteScoped))
	v.SetDefault("stock.timeout", stockapi.DefaultTimeout)
	v.SetDefault("association.base_url", "http://localhost:5001")
	v.SetDefault("association.timeout", stockapi.DefaultTimeout)
	v.SetDefault("session.ttl", 12*time.Hour)
	v.SetDefault("metrics.enabled", true)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("maraudr")
		v.AddConfigPath(".")
	}
	return v
}

// Load reads the configuration. path may be empty, in which case
// ./maraudr.{yaml,toml,json} is used when present.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// loadDotEnv exports the variables of a .env file that are not already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Watch logs changes to the configuration file. Changes are not applied to
// the running server.
func Watch(path string, logger *slog.Logger) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			logger.Warn("configuration file changed, restart to apply", "file", e.Name)
		}
	})
	v.WatchConfig()
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	routes := []any{string(stockapi.QuantityRouteScoped), string(stockapi.QuantityRouteLegacy)}
	profileNames := make([]any, 0, len(profiles))
	for name := range profiles {
		profileNames = append(profileNames, name)
	}

	return validation.Errors{
		"http.addr": validation.Validate(c.HTTP.Addr, validation.Required),
		"db.path":   validation.Validate(c.DB.Path, validation.Required),
		"stock": validation.ValidateStruct(&c.Stock,
			validation.Field(&c.Stock.Origin, validation.Required, is.URL),
			validation.Field(&c.Stock.Profile, validation.Required, validation.In(profileNames...)),
			validation.Field(&c.Stock.QuantityRoute, validation.In(routes...)),
		),
		"association": validation.ValidateStruct(&c.Association,
			validation.Field(&c.Association.BaseURL, validation.Required, is.URL),
		),
		"session.ttl": validation.Validate(c.Session.TTL, validation.Required),
	}.Filter()
}

// Dev reports whether the console runs in the development environment.
func (c *Config) Dev() bool {
	return c.App.Env == "dev" || c.App.Env == "development"
}

// StockProfile resolves the stock backend's URL shape.
func (c *Config) StockProfile() stockapi.Profile {
	p := profiles[c.Stock.Profile]
	if c.Stock.Prefix != "" {
		p.Prefix = c.Stock.Prefix
	}
	if c.Stock.ItemsPath != "" {
		p.ItemsPath = c.Stock.ItemsPath
	}
	return p
}

// QuantityRoute is the configured quantity update route.
func (c *Config) QuantityRoute() stockapi.QuantityRoute {
	return stockapi.QuantityRoute(c.Stock.QuantityRoute)
}
