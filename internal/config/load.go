package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// EnvPrefix prefixes every environment variable, e.g. TNGQL_DATABASE_DSN.
const EnvPrefix = "TNGQL"

// setting declares one configuration key: its default and, when usage is
// non-empty, the command line flag that overrides it.
type setting struct {
	key   string
	def   any
	usage string
}

var settings = []setting{
	{"database.dialect", "mysql", "Database dialect (mysql, postgres, sqlite)"},
	{"database.dsn", "", "Complete driver DSN"},
	{"database.dsn_file", "", "Path to file containing database DSN (use @- for stdin)"},
	{"database.host", "localhost", "Database host"},
	{"database.port", 4000, "Database port"},
	{"database.user", "root", "Database user"},
	{"database.password", "", "Database password"},
	{"database.password_file", "", "Path to file containing database password (use @- for stdin)"},
	{"database.password_prompt", false, "Prompt for database password securely"},
	{"database.database", "", "Database name"},
	{"database.path", "", "SQLite database file"},
	{"database.tls.mode", "", "TLS mode (off, skip-verify, verify-ca, verify-full)"},
	{"database.tls.ca_file", "", "Path to CA certificate for server verification"},
	{"database.tls.cert_file", "", "Path to client certificate for mTLS"},
	{"database.tls.key_file", "", "Path to client private key for mTLS"},
	{"database.tls.server_name", "", "Override TLS server name for verification"},
	{"database.pool.max_open", 25, "Maximum open database connections"},
	{"database.pool.max_idle", 5, "Maximum idle connections in pool"},
	{"database.pool.max_lifetime", 5 * time.Minute, "Connection max lifetime (e.g. 5m, 30s)"},
	{"database.connection_timeout", 60 * time.Second, "Max time to wait for database on startup (0 = fail immediately)"},
	{"database.connection_retry_interval", 2 * time.Second, "Initial interval between connection retries"},

	{"server.port", 8080, "HTTP server port"},
	{"server.graphiql_enabled", false, "Enable GraphiQL UI for /graphql (dev only)"},
	{"server.read_timeout", 15 * time.Second, "HTTP server read timeout"},
	{"server.write_timeout", 15 * time.Second, "HTTP server write timeout"},
	{"server.idle_timeout", 60 * time.Second, "HTTP server idle timeout"},
	{"server.shutdown_timeout", 30 * time.Second, "HTTP server graceful shutdown timeout"},
	{"server.health_check_timeout", 2 * time.Second, "Health check timeout"},

	{"mutation.max_depth", 2, "Maximum relation levels nested below a mutation's root record"},

	{"observability.service_name", "tidb-nested-graphql", "Service name for observability"},
	{"observability.service_version", "", "Service version for observability"},
	{"observability.environment", "development", "Environment name (dev, staging, prod)"},
	{"observability.metrics_enabled", true, "Enable metrics collection"},
	{"observability.tracing_enabled", false, "Enable distributed tracing"},
	{"observability.trace_sample_ratio", 1.0, "Trace sampling ratio from 0.0 to 1.0"},
	{"observability.logging.level", "info", "Log level (debug, info, warn, error)"},
	{"observability.logging.format", "json", "Log format (json, text)"},
	{"observability.logging.exports_enabled", false, "Enable OTLP log export"},

	{"observability.otlp.endpoint", "localhost:4317", "OTLP endpoint for all signals"},
	{"observability.otlp.protocol", "grpc", "OTLP protocol for all signals (grpc, http/protobuf)"},
	{"observability.otlp.insecure", false, "Use insecure connection (no TLS)"},
	{"observability.otlp.tls_cert_file", "", "Path to TLS certificate file for server verification"},
	{"observability.otlp.tls_client_cert_file", "", "Path to client certificate file for mTLS"},
	{"observability.otlp.tls_client_key_file", "", "Path to client key file for mTLS"},
	{"observability.otlp.headers", map[string]string{}, ""},
	{"observability.otlp.timeout", 10 * time.Second, "OTLP export timeout"},
	{"observability.otlp.compression", "gzip", "OTLP compression (none, gzip)"},
	{"observability.otlp.retry_enabled", true, "Enable retry on transient errors"},
	{"observability.otlp.retry_max_attempts", 3, "Maximum retry attempts"},

	{"naming.plural_overrides", map[string]string{}, ""},
	{"naming.singular_overrides", map[string]string{}, ""},
}

// signalOverrideFlags have no defaults: an unset key keeps the per-signal
// block absent so the global OTLP settings apply.
var signalOverrideFlags = []setting{
	{"observability.traces.endpoint", "", "OTLP endpoint for traces only"},
	{"observability.traces.protocol", "", "OTLP protocol for traces (grpc, http/protobuf)"},
	{"observability.traces.insecure", false, "Use insecure connection for traces"},
	{"observability.traces.timeout", time.Duration(0), "Timeout for trace exports"},
	{"observability.logs.endpoint", "", "OTLP endpoint for logs only"},
	{"observability.logs.protocol", "", "OTLP protocol for logs (grpc, http/protobuf)"},
	{"observability.logs.insecure", false, "Use insecure connection for logs"},
	{"observability.logs.timeout", time.Duration(0), "Timeout for log exports"},
}

// Load reads configuration for the process command line. Precedence, highest
// first: file-backed secrets and the password prompt, flags, environment
// variables, config file, defaults.
func Load() (*Config, error) {
	fs := pflag.CommandLine
	if fs.Lookup("config") == nil {
		defineFlags(fs)
	}
	if !fs.Parsed() {
		if err := fs.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}
	return loadFrom(fs)
}

// LoadArgs parses args with a fresh flag set and loads configuration from it.
func LoadArgs(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("tidb-nested-graphql", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return loadFrom(fs)
}

func loadFrom(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.def)
	}

	cfgPath, _ := fs.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("tidb-nested-graphql")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/tidb-nested-graphql/")
		v.AddConfigPath("$HOME/.tidb-nested-graphql")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// TNGQL_MUTATION_MAX_DEPTH maps to mutation.max_depth.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindChangedFlags(fs, v)
	if err := resolveSecrets(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if name, err := cfg.Database.EffectiveDatabaseName(); err == nil && name != "" {
		cfg.Database.Database = name
	}
	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToStringMapHookFunc(),
	)
}

// defineFlags registers one flag per setting plus --config.
func defineFlags(fs *pflag.FlagSet) {
	for _, group := range [][]setting{settings, signalOverrideFlags} {
		for _, s := range group {
			if s.usage == "" {
				continue
			}
			switch def := s.def.(type) {
			case string:
				fs.String(s.key, def, s.usage)
			case int:
				fs.Int(s.key, def, s.usage)
			case bool:
				fs.Bool(s.key, def, s.usage)
			case float64:
				fs.Float64(s.key, def, s.usage)
			case time.Duration:
				fs.Duration(s.key, def, s.usage)
			}
		}
	}
	fs.StringP("config", "c", "", "Config file path")
}

// bindChangedFlags copies only explicitly set flags into v so unset flags
// never shadow env or file values.
func bindChangedFlags(fs *pflag.FlagSet, v *viper.Viper) {
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "version" {
			return
		}
		var val any
		switch f.Value.Type() {
		case "int":
			val, _ = fs.GetInt(f.Name)
		case "bool":
			val, _ = fs.GetBool(f.Name)
		case "float64":
			val, _ = fs.GetFloat64(f.Name)
		case "duration":
			val, _ = fs.GetDuration(f.Name)
		default:
			val = f.Value.String()
		}
		v.Set(f.Name, val)
	})
}

// resolveSecrets loads the DSN and password from files or the terminal when
// they are not given inline.
func resolveSecrets(v *viper.Viper) error {
	if err := validateSingleStdinFileSource(v); err != nil {
		return err
	}
	if v.GetString("database.dsn") == "" && v.GetString("database.dsn_file") != "" {
		dsn, err := readSecretFile(v.GetString("database.dsn_file"))
		if err != nil {
			return fmt.Errorf("failed to read database DSN file: %w", err)
		}
		v.Set("database.dsn", dsn)
	}
	if v.GetString("database.password") == "" && v.GetString("database.password_file") != "" {
		pwd, err := readSecretFile(v.GetString("database.password_file"))
		if err != nil {
			return fmt.Errorf("failed to read database password file: %w", err)
		}
		v.Set("database.password", pwd)
	}
	if v.GetString("database.password") == "" && v.GetBool("database.password_prompt") {
		pwd, err := promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		v.Set("database.password", pwd)
	}
	return nil
}

// promptPassword prompts the user for a password without echoing to terminal.
func promptPassword() (string, error) {
	fmt.Print("Enter database password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(bytePassword), nil
}

func readSecretFile(path string) (string, error) {
	var data []byte
	var err error
	if path == "@-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// validateSingleStdinFileSource allows at most one secret to be read from stdin.
func validateSingleStdinFileSource(v *viper.Viper) error {
	var configured []string
	for _, key := range []string{"database.dsn_file", "database.password_file"} {
		if strings.TrimSpace(v.GetString(key)) == "@-" {
			configured = append(configured, key)
		}
	}
	if len(configured) > 1 {
		return fmt.Errorf(
			"multiple stdin-backed file settings use @- (%s); only one @- source is allowed",
			strings.Join(configured, ", "),
		)
	}
	return nil
}

// stringToStringMapHookFunc decodes "k1=v1,k2=v2" into a map[string]string,
// the form naming overrides and OTLP headers take in environment variables.
func stringToStringMapHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(map[string]string{}) {
			return data, nil
		}
		out := map[string]string{}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return out, nil
		}
		for _, pair := range strings.Split(raw, ",") {
			k, val, ok := strings.Cut(pair, "=")
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid map entry %q: want key=value", pair)
			}
			out[k] = strings.TrimSpace(val)
		}
		return out, nil
	}
}
