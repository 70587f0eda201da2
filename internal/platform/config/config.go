package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultCurrency             = "JPY"
	defaultItemWeightGrams      = 500
	defaultPackagingFeeBps      = 50
	defaultPackagingFeeMinimum  = 200
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultCheckoutSessionTTL   = 30 * time.Minute
	defaultBoxLengthCm          = 20.0
	defaultBoxWidthCm           = 15.0
	defaultBoxHeightCm          = 10.0
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	PSP         PSPConfig
	Shipping    ShippingConfig
	Idempotency IdempotencyConfig
	Trace       TraceConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PSPConfig collects settings for payment providers.
type PSPConfig struct {
	StripeAPIKey     string
	StripeAccountID  string
	DefaultProvider  string
	SessionTTL       time.Duration
}

// ShippingConfig tunes the rate engine defaults shared across requests.
type ShippingConfig struct {
	Currency                string
	DefaultItemWeightGrams  int
	DefaultBoxLengthCm      float64
	DefaultBoxWidthCm       float64
	DefaultBoxHeightCm      float64
	PackagingFeeBasisPoints int64
	PackagingFeeMinimum     int64
}

// IdempotencyConfig controls the Idempotency-Key middleware.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
}

// TraceConfig carries trace correlation settings.
type TraceConfig struct {
	ProjectID string
}

// ValidationError aggregates configuration problems discovered during Load.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid configuration: %s", strings.Join(e.fields, ", "))
}

// Fields returns the offending configuration fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	sort.Strings(out)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables system environment lookups, primarily for tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load resolves configuration from the environment with .env fallback.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		PSP: PSPConfig{
			StripeAPIKey:    stringWithDefault(lookup, "API_STRIPE_API_KEY", ""),
			StripeAccountID: stringWithDefault(lookup, "API_STRIPE_ACCOUNT_ID", ""),
			DefaultProvider: strings.ToLower(stringWithDefault(lookup, "API_PSP_DEFAULT_PROVIDER", "stripe")),
			SessionTTL:      durationWithDefault(lookup, "API_PSP_SESSION_TTL", defaultCheckoutSessionTTL),
		},
		Shipping: ShippingConfig{
			Currency:                strings.ToUpper(stringWithDefault(lookup, "API_CHECKOUT_CURRENCY", defaultCurrency)),
			DefaultItemWeightGrams:  intWithDefault(lookup, "API_SHIPPING_DEFAULT_ITEM_WEIGHT_GRAMS", defaultItemWeightGrams),
			DefaultBoxLengthCm:      floatWithDefault(lookup, "API_SHIPPING_DEFAULT_BOX_LENGTH_CM", defaultBoxLengthCm),
			DefaultBoxWidthCm:       floatWithDefault(lookup, "API_SHIPPING_DEFAULT_BOX_WIDTH_CM", defaultBoxWidthCm),
			DefaultBoxHeightCm:      floatWithDefault(lookup, "API_SHIPPING_DEFAULT_BOX_HEIGHT_CM", defaultBoxHeightCm),
			PackagingFeeBasisPoints: int64WithDefault(lookup, "API_PACKAGING_FEE_BPS", defaultPackagingFeeBps),
			PackagingFeeMinimum:     int64WithDefault(lookup, "API_PACKAGING_FEE_MINIMUM", defaultPackagingFeeMinimum),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
		},
		Trace: TraceConfig{
			ProjectID: stringWithDefault(lookup, "API_TRACE_PROJECT_ID", ""),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var fields []string

	if strings.TrimSpace(cfg.Server.Port) == "" {
		fields = append(fields, "server.port")
	}
	if strings.TrimSpace(cfg.PSP.StripeAPIKey) == "" {
		fields = append(fields, "psp.stripeApiKey")
	}
	if len(cfg.Shipping.Currency) != 3 {
		fields = append(fields, "shipping.currency")
	}
	if cfg.Shipping.DefaultItemWeightGrams <= 0 {
		fields = append(fields, "shipping.defaultItemWeightGrams")
	}
	if cfg.Shipping.PackagingFeeBasisPoints < 0 {
		fields = append(fields, "shipping.packagingFeeBasisPoints")
	}
	if cfg.Shipping.PackagingFeeMinimum < 0 {
		fields = append(fields, "shipping.packagingFeeMinimum")
	}
	if cfg.Shipping.DefaultBoxLengthCm <= 0 || cfg.Shipping.DefaultBoxWidthCm <= 0 || cfg.Shipping.DefaultBoxHeightCm <= 0 {
		fields = append(fields, "shipping.defaultBox")
	}
	if cfg.Idempotency.TTL <= 0 {
		fields = append(fields, "idempotency.ttl")
	}

	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
