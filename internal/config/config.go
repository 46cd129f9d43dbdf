// Package config loads the trader configuration: a YAML file, defaults for every
// unset key, secrets from the environment and struct validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/eyalcarmi01-ux/trading-bot/internal/gateway"
	"github.com/eyalcarmi01-ux/trading-bot/internal/strategy"
	"github.com/eyalcarmi01-ux/trading-bot/internal/types"
	"github.com/eyalcarmi01-ux/trading-bot/internal/version"
	"github.com/eyalcarmi01-ux/trading-bot/pkg/errors"
)

// Environment variables that override secrets and deployment settings.
const (
	EnvBinanceAPIKey    = "BINANCE_API_KEY"
	EnvBinanceSecretKey = "BINANCE_SECRET_KEY"
	EnvPolygonAPIKey    = "POLYGON_API_KEY"
	EnvMetricsAddr      = "METRICS_ADDR"
)

const (
	DefaultTimezone        = "Asia/Jerusalem"
	DefaultIntervalSeconds = 60
	DefaultMetricsAddr     = ":9108"
	DefaultLogDir          = "logs"
	DefaultTelemetryPath   = "data/events.parquet"
	DefaultCooldownSeconds = 60
	DefaultMinClientID     = 1
	DefaultMaxClientID     = 9999
)

// Config is the root of the configuration file.
type Config struct {
	ConfigVersion string `yaml:"config_version" json:"config_version,omitempty" jsonschema:"description=Configuration format version (semver)"`
	// Timezone governs the session gates, the trade windows and the force-close time.
	Timezone  string          `yaml:"timezone" json:"timezone,omitempty" jsonschema:"default=Asia/Jerusalem"`
	Session   SessionConfig   `yaml:"session" json:"session,omitempty"`
	Gateway   GatewayConfig   `yaml:"gateway" json:"gateway"`
	Registry  RegistryConfig  `yaml:"registry" json:"registry,omitempty"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics,omitempty"`
	LogDir    string          `yaml:"log_dir" json:"log_dir,omitempty" jsonschema:"description=Directory of the per-strategy log files,default=logs"`
	Instances []Instance      `yaml:"instances" json:"instances" jsonschema:"minItems=1" validate:"required,min=1,dive"`
}

// SessionConfig holds the daily gates shared by every instance.
type SessionConfig struct {
	// Start pauses the loop before this time.
	Start *types.TimeOfDay `yaml:"start" json:"start,omitempty" jsonschema:"description=Session open (default 07:00)"`
	// Cutoff disables new orders from this time.
	Cutoff *types.TimeOfDay `yaml:"cutoff" json:"cutoff,omitempty" jsonschema:"description=New-order cutoff (default 22:30)"`
	// Shutdown cancels, flattens and stops the loop.
	Shutdown *types.TimeOfDay `yaml:"shutdown" json:"shutdown,omitempty" jsonschema:"description=Daily shutdown (default 22:50)"`
}

// GatewayConfig selects and tunes the broker gateway.
type GatewayConfig struct {
	Provider string                       `yaml:"provider" json:"provider" jsonschema:"enum=paper,enum=binance-paper,enum=binance-live,default=paper" validate:"oneof=paper binance-paper binance-live"`
	Binance  gateway.BinanceGatewayConfig `yaml:"binance" json:"binance,omitempty" validate:"-"`
	Paper    PaperConfig                  `yaml:"paper" json:"paper,omitempty"`
	// PolygonAPIKey feeds the paper gateway's historical bars from Polygon.
	PolygonAPIKey string `yaml:"polygon_api_key" json:"polygon_api_key,omitempty"`
	// RequestsPerMinute throttles gateway calls. Zero disables throttling.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute,omitempty" validate:"gte=0"`
	Burst             int `yaml:"burst" json:"burst,omitempty" validate:"gte=0"`
}

// PaperConfig drives the synthetic price path of the paper gateway.
type PaperConfig struct {
	InitialPrice float64 `yaml:"initial_price" json:"initial_price,omitempty" jsonschema:"default=70" validate:"gte=0"`
	Volatility   float64 `yaml:"volatility" json:"volatility,omitempty" jsonschema:"default=0.0005" validate:"gte=0"`
	Seed         int64   `yaml:"seed" json:"seed,omitempty"`
}

// RegistryConfig bounds the client identities the process hands out.
type RegistryConfig struct {
	MinClientID     int `yaml:"min_client_id" json:"min_client_id,omitempty" validate:"gte=0"`
	MaxClientID     int `yaml:"max_client_id" json:"max_client_id,omitempty" validate:"gte=0"`
	CooldownSeconds int `yaml:"cooldown_seconds" json:"cooldown_seconds,omitempty" validate:"gte=0"`
}

// TelemetryConfig enables the DuckDB event store.
type TelemetryConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	OutputPath string `yaml:"output_path" json:"output_path,omitempty" jsonschema:"default=data/events.parquet"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address,omitempty" jsonschema:"default=:9108"`
}

// Instance configures one engine instance: one strategy on one instrument.
type Instance struct {
	// Name labels logs and metrics. Defaults to "<strategy>-<symbol>".
	Name     string `yaml:"name" json:"name,omitempty"`
	Strategy string `yaml:"strategy" json:"strategy" jsonschema:"enum=ema,enum=cci14_120,enum=cci14_200,enum=fibonacci_v2" validate:"required,strategy"`
	Symbol   string `yaml:"symbol" json:"symbol" validate:"required"`
	Expiry   string `yaml:"expiry" json:"expiry,omitempty"`
	Exchange string `yaml:"exchange" json:"exchange" validate:"required"`
	Currency string `yaml:"currency" json:"currency" validate:"required"`
	// ClientID is the requested gateway identity. Zero generates one.
	ClientID int `yaml:"client_id" json:"client_id,omitempty" validate:"gte=0"`
	// Interval is the cycle length in seconds.
	Interval     int               `yaml:"interval" json:"interval,omitempty" jsonschema:"default=60" validate:"gte=0"`
	Quantity     int               `yaml:"quantity" json:"quantity,omitempty" validate:"gte=0"`
	TickSize     float64           `yaml:"tick_size" json:"tick_size,omitempty" validate:"gte=0"`
	TPTicksLong  int               `yaml:"tp_ticks_long" json:"tp_ticks_long,omitempty" validate:"gte=0"`
	TPTicksShort int               `yaml:"tp_ticks_short" json:"tp_ticks_short,omitempty" validate:"gte=0"`
	SLTicks      int               `yaml:"sl_ticks" json:"sl_ticks,omitempty" validate:"gte=0"`
	ForceClose   *types.TimeOfDay  `yaml:"force_close" json:"force_close,omitempty" jsonschema:"description=Daily flatten time"`
	TradeWindow  *WindowConfig     `yaml:"trade_window" json:"trade_window,omitempty"`
	Settings     strategy.Settings `yaml:"settings" json:"settings,omitempty"`
}

// WindowConfig is an inclusive daily trade window in the configured timezone.
type WindowConfig struct {
	Start types.TimeOfDay `yaml:"start" json:"start"`
	End   types.TimeOfDay `yaml:"end" json:"end"`
}

// Load reads path, overlays the environment, fills defaults and validates.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "read config %s", path)
	}

	return Parse(raw)
}

// Parse decodes a YAML document and prepares it like Load.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "parse config", err)
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadEnv reads .env style files into the process environment without overriding
// variables already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}

		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "load env file %s", f)
		}
	}

	return nil
}

// ApplyEnv lets the environment supply secrets and the metrics address.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBinanceAPIKey); v != "" {
		c.Gateway.Binance.ApiKey = v
	}

	if v := os.Getenv(EnvBinanceSecretKey); v != "" {
		c.Gateway.Binance.SecretKey = v
	}

	if v := os.Getenv(EnvPolygonAPIKey); v != "" {
		c.Gateway.PolygonAPIKey = v
	}

	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Address = v
	}
}

// ApplyDefaults fills every unset key.
func (c *Config) ApplyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}

	if c.Session.Start == nil {
		c.Session.Start = &types.TimeOfDay{Hour: 7, Minute: 0}
	}

	if c.Session.Cutoff == nil {
		c.Session.Cutoff = &types.TimeOfDay{Hour: 22, Minute: 30}
	}

	if c.Session.Shutdown == nil {
		c.Session.Shutdown = &types.TimeOfDay{Hour: 22, Minute: 50}
	}

	if c.Gateway.Provider == "" {
		c.Gateway.Provider = string(gateway.ProviderPaper)
	}

	binance := gateway.DefaultBinanceGatewayConfig()
	if c.Gateway.Binance.LotSize == 0 {
		c.Gateway.Binance.LotSize = binance.LotSize
	}

	if c.Gateway.Binance.QuantityPrecision == 0 {
		c.Gateway.Binance.QuantityPrecision = binance.QuantityPrecision
	}

	if c.Gateway.Binance.PricePrecision == 0 {
		c.Gateway.Binance.PricePrecision = binance.PricePrecision
	}

	if c.Gateway.Paper.InitialPrice == 0 {
		c.Gateway.Paper.InitialPrice = 70
	}

	if c.Gateway.Paper.Volatility == 0 {
		c.Gateway.Paper.Volatility = 0.0005
	}

	if c.Registry.MinClientID == 0 {
		c.Registry.MinClientID = DefaultMinClientID
	}

	if c.Registry.MaxClientID == 0 {
		c.Registry.MaxClientID = DefaultMaxClientID
	}

	if c.Registry.CooldownSeconds == 0 {
		c.Registry.CooldownSeconds = DefaultCooldownSeconds
	}

	if c.Telemetry.OutputPath == "" {
		c.Telemetry.OutputPath = DefaultTelemetryPath
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = DefaultMetricsAddr
	}

	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}

	for i := range c.Instances {
		in := &c.Instances[i]

		if in.Interval == 0 {
			in.Interval = DefaultIntervalSeconds
		}

		if in.Name == "" {
			in.Name = in.Strategy + "-" + in.Symbol
		}

		if defaults, ok := strategy.DefaultParams(in.Strategy); ok {
			p := in.Params().WithDefaults(defaults)
			in.Quantity, in.TickSize = p.Quantity, p.TickSize
			in.SLTicks, in.TPTicksLong, in.TPTicksShort = p.StopTicks, p.TargetTicksLong, p.TargetTicksShort
		}
	}
}

// Validate checks the struct tags and the cross-field rules. It runs before any
// connection is made.
func (c *Config) Validate() error {
	if err := version.CheckConfigVersion(c.ConfigVersion); err != nil {
		return err
	}

	validate := validator.New()
	if err := validate.RegisterValidation("strategy", validStrategy); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "register validators", err)
	}

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.Session.Cutoff != nil && c.Session.Shutdown != nil && c.Session.Shutdown.Seconds() < c.Session.Cutoff.Seconds() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "session shutdown %s is before the cutoff %s", c.Session.Shutdown, c.Session.Cutoff)
	}

	if c.Registry.MaxClientID < c.Registry.MinClientID {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "registry max_client_id %d is below min_client_id %d", c.Registry.MaxClientID, c.Registry.MinClientID)
	}

	if c.Gateway.Provider != string(gateway.ProviderPaper) {
		if err := c.Gateway.Binance.Validate(); err != nil {
			return err
		}
	}

	names := make(map[string]struct{}, len(c.Instances))
	ids := make(map[int]string, len(c.Instances))

	for _, in := range c.Instances {
		if _, dup := names[in.Name]; dup {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "duplicate instance name %q", in.Name)
		}

		names[in.Name] = struct{}{}

		if in.ClientID != 0 {
			if other, dup := ids[in.ClientID]; dup {
				return errors.Newf(errors.ErrCodeInvalidConfiguration, "instances %q and %q request the same client_id %d", other, in.Name, in.ClientID)
			}

			ids[in.ClientID] = in.Name
		}

		if _, err := in.Instrument(); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "instance %q", in.Name)
		}

		for _, side := range []types.PurchaseType{types.PurchaseTypeBuy, types.PurchaseTypeSell} {
			if err := in.Params().Request(side).Validate(); err != nil {
				return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "instance %q", in.Name)
			}
		}
	}

	return nil
}

func validStrategy(fl validator.FieldLevel) bool {
	_, ok := strategy.DefaultParams(fl.Field().String())

	return ok
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return types.LoadLocation(c.Timezone)
}

// Instrument builds the validated descriptor of the instance.
func (in Instance) Instrument() (types.InstrumentDescriptor, error) {
	return types.NewInstrumentDescriptor(in.Symbol, in.Exchange, in.Currency, in.Expiry)
}

// Params is the bracket sizing of the instance.
func (in Instance) Params() strategy.Params {
	return strategy.Params{
		Quantity:         in.Quantity,
		TickSize:         in.TickSize,
		StopTicks:        in.SLTicks,
		TargetTicksLong:  in.TPTicksLong,
		TargetTicksShort: in.TPTicksShort,
	}
}

// Window is the configured trade window in loc, None when unset.
func (in Instance) Window(loc *time.Location) optional.Option[types.TradeWindow] {
	if in.TradeWindow == nil {
		return optional.None[types.TradeWindow]()
	}

	return optional.Some(types.TradeWindow{Start: in.TradeWindow.Start, End: in.TradeWindow.End, Location: loc})
}

// CycleInterval is the configured interval as a duration.
func (in Instance) CycleInterval() time.Duration {
	return time.Duration(in.Interval) * time.Second
}

// LogTag is the strategy tag carried by every log record of the instance.
func (in Instance) LogTag() string {
	return strings.ReplaceAll(in.Name, string(os.PathSeparator), "_")
}

// Summary is a one-line description for startup logs.
func (in Instance) Summary() string {
	return fmt.Sprintf("%s %s qty=%d tick=%g sl=%d tp=%d/%d", in.Strategy, in.Symbol, in.Quantity, in.TickSize, in.SLTicks, in.TPTicksLong, in.TPTicksShort)
}
