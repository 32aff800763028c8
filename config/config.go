/*
Package config loads the planner server configuration.

PURPOSE:
  Every setting is available as a command-line flag, a PLANNER_*
  environment variable and a key of an optional YAML file, in that order
  of precedence.

KEYS:
  port                 HTTP port (8080)
  db                   SQLite path, ":memory:" for an in-memory store (planner.db)
  log-level            debug | info | warn | error (info)
  cors-origins         Allowed CORS origins, comma separated
  reference-cache-ttl  How long domains/statuses/skills are cached (5m)
  jira-url             Default Jira site
  jira-email           Default Jira account
  jira-token           Default Jira API token
  jira-rps             Jira requests per second (5)
  jira-sync-interval   Periodic sync of linked projects, 0 disables (0)
  config               YAML file to read before flags and env

SEE ALSO:
  - cmd/server/main.go: Uses Load
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "PLANNER"

type Config struct {
	Port              int           `mapstructure:"port"`
	DB                string        `mapstructure:"db"`
	LogLevel          string        `mapstructure:"log-level"`
	CORSOrigins       []string      `mapstructure:"cors-origins"`
	ReferenceCacheTTL time.Duration `mapstructure:"reference-cache-ttl"`
	JiraURL           string        `mapstructure:"jira-url"`
	JiraEmail         string        `mapstructure:"jira-email"`
	JiraToken         string        `mapstructure:"jira-token"`
	JiraRPS           float64       `mapstructure:"jira-rps"`
	JiraSyncInterval  time.Duration `mapstructure:"jira-sync-interval"`
	ConfigFile        string        `mapstructure:"config"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:              8080,
		DB:                "planner.db",
		LogLevel:          "info",
		ReferenceCacheTTL: 5 * time.Minute,
		JiraRPS:           5,
	}
}

// =============================================================================
// REGISTRATION
// =============================================================================

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

func bind(v *viper.Viper, flags *pflag.FlagSet, key string, value any) {
	_ = v.BindEnv(key, envName(key))
	_ = v.BindPFlag(key, flags.Lookup(key))
	v.SetDefault(key, value)
}

// Register declares every key as a flag on flags and binds it, plus its
// environment variable, to v.
func Register(v *viper.Viper, flags *pflag.FlagSet) {
	d := Default()

	flags.Int("port", d.Port, "HTTP server port")
	bind(v, flags, "port", d.Port)
	flags.String("db", d.DB, `SQLite database path (":memory:" for in-memory)`)
	bind(v, flags, "db", d.DB)
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	bind(v, flags, "log-level", d.LogLevel)
	flags.StringSlice("cors-origins", nil, "allowed CORS origins")
	bind(v, flags, "cors-origins", []string{})
	flags.Duration("reference-cache-ttl", d.ReferenceCacheTTL, "reference data cache TTL")
	bind(v, flags, "reference-cache-ttl", d.ReferenceCacheTTL)

	flags.String("jira-url", "", "default Jira site URL")
	bind(v, flags, "jira-url", "")
	flags.String("jira-email", "", "default Jira account email")
	bind(v, flags, "jira-email", "")
	flags.String("jira-token", "", "default Jira API token")
	bind(v, flags, "jira-token", "")
	flags.Float64("jira-rps", d.JiraRPS, "Jira requests per second")
	bind(v, flags, "jira-rps", d.JiraRPS)
	flags.Duration("jira-sync-interval", 0, "sync Jira-linked projects every interval (0 disables)")
	bind(v, flags, "jira-sync-interval", time.Duration(0))

	flags.String("config", "", "YAML configuration file")
	bind(v, flags, "config", "")
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the optional config file named by the "config" key and
// returns the merged, validated configuration.
func Load(v *viper.Viper) (Config, error) {
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects unusable values. Every problem is reported.
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.Port <= 0 || c.Port > 65535 {
		errs = multierror.Append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DB == "" {
		errs = multierror.Append(errs, errors.New("db is required"))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid log-level %q", c.LogLevel))
	}
	if c.JiraSyncInterval < 0 {
		errs = multierror.Append(errs, errors.New("jira-sync-interval must not be negative"))
	}
	if c.JiraRPS <= 0 {
		errs = multierror.Append(errs, errors.New("jira-rps must be positive"))
	}
	if c.JiraSyncInterval > 0 && !c.HasJiraCredentials() {
		errs = multierror.Append(errs, errors.New("jira-sync-interval requires jira-url, jira-email and jira-token"))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HasJiraCredentials reports whether default Jira credentials are set.
func (c Config) HasJiraCredentials() bool {
	return c.JiraURL != "" && c.JiraEmail != "" && c.JiraToken != ""
}

// Logger builds a production zap logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}
