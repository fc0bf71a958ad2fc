package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/keithlinneman/tours-api/internal/log"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type App struct {
	Env               string
	LogJSON           bool
	LogLevel          string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	DatabaseURI              string
	DatabaseUser             string
	DatabasePassword         string
	DatabasePasswordSSMParam string
	DatabaseName             string
	DatabaseAuthSource       string
	DatabaseConnectTimeout   time.Duration

	TrustedHops     int
	PublicDir       string
	BodyLimit       int64
	RateLimitMax    int
	RateLimitWindow time.Duration
	JWTSecret       string
	JWTExpiresIn    time.Duration
	ExitOnUnhandled bool
}

// Production reports whether the runtime environment is "production".
func (c App) Production() bool { return c.Env == EnvProduction }

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.Env, "node-env", EnvDevelopment, "runtime environment (development|production)")
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 3000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")

	fs.StringVar(&c.DatabaseURI, "database-uri", "mongodb://localhost:27017", "mongodb connection uri without credentials")
	fs.StringVar(&c.DatabaseUser, "database-user", "", "database username")
	fs.StringVar(&c.DatabasePassword, "database-password", "", "database password (prefer database-password-ssm-param)")
	fs.StringVar(&c.DatabasePasswordSSMParam, "database-password-ssm-param", "", "ssm SecureString parameter holding the database password")
	fs.StringVar(&c.DatabaseName, "database-name", "natours", "database name")
	fs.StringVar(&c.DatabaseAuthSource, "database-auth-source", "admin", "authentication database")
	fs.DurationVar(&c.DatabaseConnectTimeout, "database-connect-timeout", 10*time.Second, "timeout for the single startup connect attempt")

	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "reverse proxies in front of the server whose X-Forwarded-For entries are trusted (0..8)")
	fs.StringVar(&c.PublicDir, "public-dir", "", "directory of static files (empty serves the embedded public dir)")
	fs.Int64Var(&c.BodyLimit, "body-limit", 10<<10, "max request body size in bytes")
	fs.IntVar(&c.RateLimitMax, "rate-limit-max", 500, "max requests per client per window under /api")
	fs.DurationVar(&c.RateLimitWindow, "rate-limit-window", time.Hour, "rate limit window")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HMAC secret for signing auth tokens")
	fs.DurationVar(&c.JWTExpiresIn, "jwt-expires-in", 90*24*time.Hour, "auth token lifetime")
	fs.BoolVar(&c.ExitOnUnhandled, "exit-on-unhandled", true, "shut down and exit 1 on an unhandled background failure")
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s", f.Name, f.Value.String(), key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s: %v", f.Name, key, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("invalid NODE_ENV %q (must be %s|%s)", c.Env, EnvDevelopment, EnvProduction))
	}

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if c.IncludeErrorLinks {
		if c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64 {
			errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
		}
	}

	// Database. Credentials never travel inside the uri.
	if c.DatabaseURI == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URI is required"))
	} else if u, err := url.Parse(c.DatabaseURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
		errs = append(errs, fmt.Errorf("DATABASE_URI must be a mongodb:// or mongodb+srv:// uri"))
	} else if u.User != nil {
		errs = append(errs, fmt.Errorf("DATABASE_URI must not embed credentials; use DATABASE_USER and DATABASE_PASSWORD"))
	}
	if c.DatabaseName == "" {
		errs = append(errs, fmt.Errorf("DATABASE_NAME is required"))
	}
	if c.DatabasePassword != "" && c.DatabasePasswordSSMParam != "" {
		errs = append(errs, fmt.Errorf("set only one of DATABASE_PASSWORD and DATABASE_PASSWORD_SSM_PARAM"))
	}
	if c.DatabaseUser == "" && (c.DatabasePassword != "" || c.DatabasePasswordSSMParam != "") {
		errs = append(errs, fmt.Errorf("DATABASE_USER required when a database password is configured"))
	}
	if c.DatabaseConnectTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DATABASE_CONNECT_TIMEOUT must be > 0 (got %s)", c.DatabaseConnectTimeout))
	}

	if c.TrustedHops < 0 || c.TrustedHops > 8 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be 0..8 (got %d)", c.TrustedHops))
	}

	// Pipeline limits
	if c.BodyLimit < 1 {
		errs = append(errs, fmt.Errorf("BODY_LIMIT must be > 0 (got %d)", c.BodyLimit))
	}
	if c.RateLimitMax < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be > 0 (got %d)", c.RateLimitMax))
	}
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be > 0 (got %s)", c.RateLimitWindow))
	}

	// Auth
	if c.Production() && len(c.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.JWTExpiresIn <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN must be > 0 (got %s)", c.JWTExpiresIn))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
