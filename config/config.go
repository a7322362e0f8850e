// Package config loads the application settings: a typed view used by the
// bootstrap steps and the raw hierarchical tree used for dotted lookups and
// data-driven sections such as cache frontends and backends.
package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/GoCodeAlone/baseapp/feeders"
	"github.com/golobby/cast"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvPrefix prefixes every environment variable overlaid on the file.
const EnvPrefix = "BASEAPP_"

// AppConfig holds the core application settings.
type AppConfig struct {
	Name      string `yaml:"name" toml:"name" json:"name" env:"NAME" default:"baseapp" desc:"Application name"`
	Env       string `yaml:"env" toml:"env" json:"env" env:"ENV" default:"production" desc:"development or production"`
	Timezone  string `yaml:"timezone" toml:"timezone" json:"timezone" env:"TIMEZONE" required:"true" desc:"IANA time zone applied at boot"`
	Admin     string `yaml:"admin" toml:"admin" json:"admin" env:"ADMIN" required:"true" desc:"Recipient of failure alerts"`
	BaseURI   string `yaml:"base_uri" toml:"base_uri" json:"base_uri" env:"BASE_URI" default:"/" desc:"Base URI for generated links"`
	StaticURI string `yaml:"static_uri" toml:"static_uri" json:"static_uri" env:"STATIC_URI" default:"/" desc:"Base URI for static assets"`
}

// DatabaseConfig describes the primary database connection.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" toml:"driver" json:"driver" env:"DRIVER" default:"mysql" desc:"mysql or sqlite"`
	Host            string        `yaml:"host" toml:"host" json:"host" env:"HOST"`
	Port            int           `yaml:"port" toml:"port" json:"port" env:"PORT" default:"3306"`
	Username        string        `yaml:"username" toml:"username" json:"username" env:"USERNAME"`
	Password        string        `yaml:"password" toml:"password" json:"password" env:"PASSWORD"`
	DBName          string        `yaml:"dbname" toml:"dbname" json:"dbname" env:"DBNAME" required:"true" desc:"Database name, or file path for sqlite"`
	MaxOpenConns    int           `yaml:"max_open_conns" toml:"max_open_conns" json:"max_open_conns" env:"MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" toml:"max_idle_conns" json:"max_idle_conns" env:"MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" toml:"conn_max_lifetime" json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME" default:"5m"`
}

// CryptConfig keys the symmetric cipher.
type CryptConfig struct {
	Key string `yaml:"key" toml:"key" json:"key" env:"KEY" required:"true" desc:"Secret the cipher key is derived from"`
}

// CacheConfig maps cache service names to the config section describing
// their frontend. Each frontend section names its backend section.
type CacheConfig struct {
	Services map[string]string `yaml:"services" toml:"services" json:"services" required:"true" desc:"service name to frontend section"`
}

// SessionConfig configures the session manager.
type SessionConfig struct {
	Store      string        `yaml:"store" toml:"store" json:"store" env:"STORE" default:"memory" desc:"memory or redis"`
	Name       string        `yaml:"name" toml:"name" json:"name" env:"NAME" default:"baseapp_session"`
	Lifetime   time.Duration `yaml:"lifetime" toml:"lifetime" json:"lifetime" env:"LIFETIME" default:"24h"`
	GCSchedule string        `yaml:"gc_schedule" toml:"gc_schedule" json:"gc_schedule" env:"GC_SCHEDULE" default:"@every 10m"`
	RedisAddr  string        `yaml:"redis_addr" toml:"redis_addr" json:"redis_addr" env:"REDIS_ADDR"`
	Prefix     string        `yaml:"prefix" toml:"prefix" json:"prefix" env:"PREFIX" default:"session:"`
}

// I18nConfig configures locale negotiation.
type I18nConfig struct {
	Default    string   `yaml:"default" toml:"default" json:"default" env:"DEFAULT" default:"en"`
	Supported  []string `yaml:"supported" toml:"supported" json:"supported" env:"SUPPORTED" default:"[\"en\"]"`
	CookieName string   `yaml:"cookie" toml:"cookie" json:"cookie" env:"COOKIE" default:"lang"`
	QueryParam string   `yaml:"query" toml:"query" json:"query" env:"QUERY" default:"lang"`
}

// MailConfig configures the alert mailer.
type MailConfig struct {
	Host     string `yaml:"host" toml:"host" json:"host" env:"HOST" default:"localhost"`
	Port     int    `yaml:"port" toml:"port" json:"port" env:"PORT" default:"25"`
	Username string `yaml:"username" toml:"username" json:"username" env:"USERNAME"`
	Password string `yaml:"password" toml:"password" json:"password" env:"PASSWORD"`
	From     string `yaml:"from" toml:"from" json:"from" env:"FROM" default:"noreply@localhost"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `yaml:"addr" toml:"addr" json:"addr" env:"ADDR" default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout" env:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" env:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" toml:"idle_timeout" json:"idle_timeout" env:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" default:"10s"`
	MetricsPath     string        `yaml:"metrics_path" toml:"metrics_path" json:"metrics_path" env:"METRICS_PATH" default:"/metrics"`
}

// PathsConfig maps loader namespaces to directories.
type PathsConfig struct {
	Models    string `yaml:"models" toml:"models" json:"models" env:"MODELS" default:"app/common/models"`
	Library   string `yaml:"library" toml:"library" json:"library" env:"LIBRARY" default:"app/common/library"`
	Extension string `yaml:"extension" toml:"extension" json:"extension" env:"EXTENSION" default:"app/common/extension"`
	Views     string `yaml:"views" toml:"views" json:"views" env:"VIEWS" default:"app/frontend/views"`
	Logs      string `yaml:"logs" toml:"logs" json:"logs" env:"LOGS" default:"app/common/logs"`
}

// Config is the read-only application configuration.
type Config struct {
	App      AppConfig      `yaml:"app" toml:"app" json:"app" envPrefix:"APP_"`
	Database DatabaseConfig `yaml:"database" toml:"database" json:"database" envPrefix:"DATABASE_"`
	Crypt    CryptConfig    `yaml:"crypt" toml:"crypt" json:"crypt" envPrefix:"CRYPT_"`
	Cache    CacheConfig    `yaml:"cache" toml:"cache" json:"cache"`
	Session  SessionConfig  `yaml:"session" toml:"session" json:"session" envPrefix:"SESSION_"`
	I18n     I18nConfig     `yaml:"i18n" toml:"i18n" json:"i18n" envPrefix:"I18N_"`
	Mail     MailConfig     `yaml:"mail" toml:"mail" json:"mail" envPrefix:"MAIL_"`
	Server   ServerConfig   `yaml:"server" toml:"server" json:"server" envPrefix:"SERVER_"`
	Paths    PathsConfig    `yaml:"paths" toml:"paths" json:"paths" envPrefix:"PATHS_"`

	raw map[string]any
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" || c.Database.Username == "" {
			return fmt.Errorf("%w: database.host and database.username are required for mysql", ErrInvalidValue)
		}
	case "sqlite":
	default:
		return fmt.Errorf("%w: database.driver %q", ErrInvalidValue, c.Database.Driver)
	}
	if !slices.Contains([]string{"memory", "redis"}, c.Session.Store) {
		return fmt.Errorf("%w: session.store %q", ErrInvalidValue, c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Session.RedisAddr == "" {
		return fmt.Errorf("%w: session.redis_addr is required for the redis store", ErrInvalidValue)
	}
	if !slices.Contains(c.I18n.Supported, c.I18n.Default) {
		return fmt.Errorf("%w: i18n.default %q is not in i18n.supported", ErrInvalidValue, c.I18n.Default)
	}
	return nil
}

// Option adjusts loading.
type Option func(*loadOptions)

type loadOptions struct {
	envPrefix   string
	environment map[string]string
	dotEnv      string
}

// WithEnvPrefix replaces EnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(o *loadOptions) { o.envPrefix = prefix }
}

// WithEnvironment reads overrides from env instead of the process environment.
func WithEnvironment(env map[string]string) Option {
	return func(o *loadOptions) { o.environment = env }
}

// WithDotEnv also overlays the variables of a .env file. Real environment
// variables take precedence over the file.
func WithDotEnv(path string) Option {
	return func(o *loadOptions) { o.dotEnv = path }
}

// Load reads path with the feeder matching its extension, overlays the
// environment, applies defaults and validates.
func Load(path string, opts ...Option) (*Config, error) {
	feeder, err := feeders.ForFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := feeder.Feed(&raw); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := feeder.Feed(cfg); err != nil {
		return nil, err
	}
	return finish(cfg, raw, opts)
}

// FromMap builds a configuration from an in-memory tree.
func FromMap(tree map[string]any, opts ...Option) (*Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config tree: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config tree: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode config tree: %w", err)
	}
	return finish(cfg, raw, opts)
}

func finish(cfg *Config, raw map[string]any, opts []Option) (*Config, error) {
	o := loadOptions{envPrefix: EnvPrefix}
	for _, opt := range opts {
		opt(&o)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	cfg.raw = raw

	if err := ProcessDefaults(cfg); err != nil {
		return nil, err
	}
	var env feeders.Feeder = feeders.EnvFeeder{Prefix: o.envPrefix, Environment: o.environment}
	if o.dotEnv != "" {
		env = feeders.DotEnvFeeder{Path: o.dotEnv, Prefix: o.envPrefix, Environment: o.environment}
	}
	if err := env.Feed(cfg); err != nil {
		return nil, err
	}
	if err := ValidateRequired(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the value at a dotted key. Typed settings take precedence
// over the raw tree, so environment overrides are visible.
func (c *Config) Get(key string) (any, bool) {
	parts := strings.Split(key, ".")
	if v, ok := lookupStruct(reflect.ValueOf(c).Elem(), parts); ok {
		return v, true
	}
	return lookupTree(c.raw, parts)
}

// String returns the value at key formatted as a string, or "".
func (c *Config) String(key string) string {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Has reports whether key resolves.
func (c *Config) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Section returns the raw section with the given top-level name.
func (c *Config) Section(name string) (Section, error) {
	v, ok := lookupTree(c.raw, strings.Split(name, "."))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	m, ok := asMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a section", ErrInvalidValue, name)
	}
	return Section(m), nil
}

func lookupStruct(v reflect.Value, parts []string) (any, bool) {
	for i, part := range parts {
		if v.Kind() != reflect.Struct {
			return nil, false
		}
		t := v.Type()
		found := false
		for f := 0; f < t.NumField(); f++ {
			sf := t.Field(f)
			if !sf.IsExported() || tagName(sf) != part {
				continue
			}
			v = v.Field(f)
			found = true
			break
		}
		if !found {
			return nil, false
		}
		if v.Kind() == reflect.Map && i < len(parts)-1 {
			mv := v.MapIndex(reflect.ValueOf(strings.Join(parts[i+1:], ".")))
			if !mv.IsValid() {
				return nil, false
			}
			return mv.Interface(), true
		}
	}
	return v.Interface(), true
}

func tagName(sf reflect.StructField) string {
	name, _, _ := strings.Cut(sf.Tag.Get("yaml"), ",")
	if name == "" {
		return strings.ToLower(sf.Name)
	}
	return name
}

func lookupTree(tree map[string]any, parts []string) (any, bool) {
	var cur any = tree
	for _, part := range parts {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Section:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// Section is a raw configuration section.
type Section map[string]any

// String returns key formatted as a string, or "".
func (s Section) String(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Int returns key as an int.
func (s Section) Int(key string) (int, error) {
	switch v := s[key].(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		n, err := cast.FromType(fmt.Sprint(v), reflect.TypeOf(0))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidValue, key, err)
		}
		return n.(int), nil
	}
}

// Duration returns key as a duration. Bare numbers are seconds.
func (s Section) Duration(key string) (time.Duration, error) {
	if str, ok := s[key].(string); ok {
		if d, err := time.ParseDuration(str); err == nil {
			return d, nil
		}
	}
	n, err := s.Int(key)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// Map returns the nested section under key.
func (s Section) Map(key string) Section {
	m, ok := asMap(s[key])
	if !ok {
		return Section{}
	}
	return Section(m)
}

// Options returns the "options" sub-section as plain values.
func (s Section) Options() map[string]any {
	return map[string]any(s.Map("options"))
}

// StringOr returns key as a string, or def when absent or empty.
func (s Section) StringOr(key, def string) string {
	if v := s.String(key); v != "" {
		return v
	}
	return def
}

// IntOr returns key as an int, or def when absent or malformed.
func (s Section) IntOr(key string, def int) int {
	n, err := s.Int(key)
	if err != nil {
		return def
	}
	return n
}

// DurationOr returns key as a duration, or def when absent or malformed.
func (s Section) DurationOr(key string, def time.Duration) time.Duration {
	d, err := s.Duration(key)
	if err != nil {
		return def
	}
	return d
}
