package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"tidb-nested-graphql/internal/logging"
	"tidb-nested-graphql/internal/naming"
	"tidb-nested-graphql/internal/sqlutil"
)

// ValidationError is a fatal configuration problem.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning is a configuration issue the server can start with.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult collects the errors and warnings of one Validate call.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors reports whether any fatal problem was found.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error joins all validation errors, or returns "" when there are none.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) fail(field, hint, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

func (r *ValidationResult) warn(field, hint, format string, args ...any) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...), Hint: hint})
}

// oneOf fails field unless value is among allowed. The empty string is
// listed explicitly by callers that accept it.
func (r *ValidationResult) oneOf(field, what, value string, allowed ...string) {
	if slices.Contains(allowed, value) {
		return
	}
	shown := slices.DeleteFunc(slices.Clone(allowed), func(s string) bool { return s == "" })
	r.fail(field, "valid values are: "+strings.Join(shown, ", "), "invalid %s %q", what, value)
}

func (r *ValidationResult) nonNegative(field string, d time.Duration) {
	if d < 0 {
		r.fail(field, "", "%s cannot be negative", field[strings.LastIndex(field, ".")+1:])
	}
}

// Validate checks the configuration and returns fatal errors and warnings.
// For MySQL it also fills Database.Database from the DSN when unset.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Mutation.validate(result)
	c.Observability.validate(result)
	validateNaming(result, c.Naming)
	return result
}

func validateNaming(result *ValidationResult, cfg naming.Config) {
	for field, overrides := range map[string]map[string]string{
		"naming.plural_overrides":   cfg.PluralOverrides,
		"naming.singular_overrides": cfg.SingularOverrides,
	} {
		for from, to := range overrides {
			if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
				result.fail(field, "", "override %q -> %q cannot have an empty side", from, to)
			}
		}
	}
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	dialect, err := d.ParsedDialect()
	if err != nil {
		result.fail("database.dialect", "valid values are: mysql, postgres, sqlite", "%s", err.Error())
		return
	}

	if dialect == sqlutil.SQLite {
		if d.TLS.Mode != "" && d.TLS.Mode != "off" {
			result.warn("database.tls.mode", "", "TLS settings are ignored for sqlite")
		}
		if d.ConnectionString == "" && d.Path == "" {
			result.warn("database.path", "", "no sqlite path configured; using an in-memory database")
		}
	} else {
		if d.ConnectionString == "" && (d.Port < 1 || d.Port > 65535) {
			result.fail("database.port", "", "port %d is out of valid range (1-65535)", d.Port)
		}
		d.TLS.validate(result)
	}

	d.Pool.validate(result)
	d.validateRetry(result)

	if dialect == sqlutil.MySQL {
		d.resolveMySQLDatabase(result)
	}
}

func (p PoolConfig) validate(result *ValidationResult) {
	if p.MaxOpen < 0 {
		result.fail("database.pool.max_open", "", "max_open cannot be negative")
	}
	if p.MaxIdle < 0 {
		result.fail("database.pool.max_idle", "", "max_idle cannot be negative")
	}
	if p.MaxOpen > 0 && p.MaxIdle > p.MaxOpen {
		result.warn("database.pool.max_idle", "idle connections will be limited to max_open", "max_idle is greater than max_open")
	}
	result.nonNegative("database.pool.max_lifetime", p.MaxLifetime)
}

func (d *DatabaseConfig) validateRetry(result *ValidationResult) {
	result.nonNegative("database.connection_timeout", d.ConnectionTimeout)
	result.nonNegative("database.connection_retry_interval", d.ConnectionRetryInterval)
	if d.ConnectionTimeout <= 0 {
		return
	}
	switch {
	case d.ConnectionRetryInterval == 0:
		result.fail("database.connection_retry_interval",
			"set a retry interval such as 2s, or set connection_timeout to 0 to disable retries",
			"connection_retry_interval must be greater than 0 when connection_timeout is set")
	case d.ConnectionRetryInterval > d.ConnectionTimeout:
		result.warn("database.connection_retry_interval", "only one connection attempt will be made",
			"connection_retry_interval is greater than connection_timeout")
	}
}

func (d *DatabaseConfig) resolveMySQLDatabase(result *ValidationResult) {
	name, err := resolveEffectiveDatabaseName(d.Database, d.ConnectionString)
	if err == nil {
		d.Database = name
		return
	}
	if strings.HasPrefix(err.Error(), "database.dsn") {
		result.fail("database.dsn", "set a valid MySQL DSN in database.dsn/database.dsn_file", "%s", err.Error())
		return
	}
	result.fail("database.database", "set database.database or include a /database in database.dsn", "%s", err.Error())
}

func (t *DatabaseTLSConfig) validate(result *ValidationResult) {
	result.oneOf("database.tls.mode", "TLS mode", t.Mode, "", "off", "skip-verify", "verify-ca", "verify-full")

	switch t.Mode {
	case "verify-ca", "verify-full":
		if t.CAFile == "" {
			result.fail("database.tls.ca_file", "", "CA file is required for verify-ca and verify-full modes")
		}
	case "skip-verify":
		result.warn("database.tls.mode", "use verify-ca or verify-full in production",
			"skip-verify mode does not verify server certificates")
	}

	if (t.CertFile == "") != (t.KeyFile == "") {
		result.fail("database.tls.cert_file", "provide both cert_file and key_file, or neither",
			"both cert_file and key_file must be specified for client certificate authentication")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.fail("server.port", "", "port %d is out of valid range (1-65535)", s.Port)
	}
	result.nonNegative("server.read_timeout", s.ReadTimeout)
	result.nonNegative("server.write_timeout", s.WriteTimeout)
	result.nonNegative("server.idle_timeout", s.IdleTimeout)
	result.nonNegative("server.shutdown_timeout", s.ShutdownTimeout)
	result.nonNegative("server.health_check_timeout", s.HealthCheckTimeout)
	if s.GraphiQLEnabled {
		result.warn("server.graphiql_enabled", "disable it outside development", "GraphiQL is enabled")
	}
}

// deepMutationWarning is the max_depth above which nested writes get a warning.
const deepMutationWarning = 5

func (m *MutationConfig) validate(result *ValidationResult) {
	switch {
	case m.MaxDepth < 1:
		result.fail("mutation.max_depth", "one forward and one reverse relation level need max_depth 2",
			"max_depth %d must be at least 1", m.MaxDepth)
	case m.MaxDepth > deepMutationWarning:
		result.warn("mutation.max_depth", "each level adds a transaction step per related record",
			"max_depth %d allows very deep nested writes", m.MaxDepth)
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	if _, ok := logging.ParseLevel(o.Logging.Level); !ok {
		result.fail("observability.logging.level", "valid values are: debug, info, warn, error",
			"invalid log level %q", o.Logging.Level)
	}
	result.oneOf("observability.logging.format", "log format", o.Logging.Format, "json", "text")

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.fail("observability.trace_sample_ratio", "", "trace_sample_ratio %v must be between 0 and 1", o.TraceSampleRatio)
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	result.oneOf(prefix+".protocol", "OTLP protocol", o.Protocol, "", "grpc", "http/protobuf")
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.fail(prefix+".endpoint", "use host:port or a full URL", "invalid OTLP endpoint %q for http/protobuf", o.Endpoint)
	}
	result.oneOf(prefix+".compression", "OTLP compression", o.Compression, "", "none", "gzip")
	if o.RetryMaxAttempts < 0 {
		result.fail(prefix+".retry_max_attempts", "", "retry_max_attempts cannot be negative")
	}
	result.nonNegative(prefix+".timeout", o.Timeout)
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		return err == nil && parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
