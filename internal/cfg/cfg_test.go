package cfg

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func wantErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error containing %q, got <nil>", sub)
	}
	if !strings.Contains(err.Error(), sub) {
		t.Fatalf("error %q does not contain %q", err.Error(), sub)
	}
}

// newTestConfig registers flags on a fresh FlagSet, parses the given args,
// and returns the resulting App. This isolates each test from flag.CommandLine.
func newTestConfig(t *testing.T, args []string) App {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	return c
}

func TestRegister_Defaults(t *testing.T) {
	c := newTestConfig(t, nil)

	if c.Env != EnvDevelopment {
		t.Errorf("Env: want %q, got %q", EnvDevelopment, c.Env)
	}
	if c.Production() {
		t.Error("Production: want false")
	}
	if c.HTTPPort != 3000 {
		t.Errorf("HTTPPort: want 3000, got %d", c.HTTPPort)
	}
	if c.BodyLimit != 10*1024 {
		t.Errorf("BodyLimit: want 10240, got %d", c.BodyLimit)
	}
	if c.RateLimitMax != 500 {
		t.Errorf("RateLimitMax: want 500, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow != time.Hour {
		t.Errorf("RateLimitWindow: want 1h, got %s", c.RateLimitWindow)
	}
	if !c.ExitOnUnhandled {
		t.Error("ExitOnUnhandled: want true")
	}
	if c.DatabaseConnectTimeout != 10*time.Second {
		t.Errorf("DatabaseConnectTimeout: want 10s, got %s", c.DatabaseConnectTimeout)
	}
	if c.PublicDir != "" {
		t.Errorf("PublicDir: want empty, got %q", c.PublicDir)
	}
}

func TestRegister_CLIOverrides(t *testing.T) {
	c := newTestConfig(t, []string{
		"-node-env=production",
		"-http-port=8000",
		"-rate-limit-max=5",
		"-rate-limit-window=1m",
		"-body-limit=2048",
		"-exit-on-unhandled=false",
		"-database-user=natours",
	})

	if !c.Production() {
		t.Error("Production: want true")
	}
	if c.HTTPPort != 8000 {
		t.Errorf("HTTPPort: want 8000, got %d", c.HTTPPort)
	}
	if c.RateLimitMax != 5 || c.RateLimitWindow != time.Minute {
		t.Errorf("rate limit: got %d/%s", c.RateLimitMax, c.RateLimitWindow)
	}
	if c.BodyLimit != 2048 {
		t.Errorf("BodyLimit: want 2048, got %d", c.BodyLimit)
	}
	if c.ExitOnUnhandled {
		t.Error("ExitOnUnhandled: want false")
	}
	if c.DatabaseUser != "natours" {
		t.Errorf("DatabaseUser: want natours, got %q", c.DatabaseUser)
	}
}

func TestFillFromEnv(t *testing.T) {
	pfx := "TESTCFG_"
	t.Setenv(pfx+"NODE_ENV", "production")
	t.Setenv(pfx+"HTTP_PORT", "8088")
	t.Setenv(pfx+"DATABASE_URI", "mongodb://db:27017")
	t.Setenv(pfx+"DATABASE_PASSWORD", "hunter2")
	t.Setenv(pfx+"RATE_LIMIT_WINDOW", "30m")
	t.Setenv(pfx+"EXIT_ON_UNHANDLED", "false")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}
	FillFromEnv(fs, pfx, nil)

	if c.Env != EnvProduction {
		t.Errorf("Env: want production, got %q", c.Env)
	}
	if c.HTTPPort != 8088 {
		t.Errorf("HTTPPort: want 8088, got %d", c.HTTPPort)
	}
	if c.DatabaseURI != "mongodb://db:27017" {
		t.Errorf("DatabaseURI: got %q", c.DatabaseURI)
	}
	if c.DatabasePassword != "hunter2" {
		t.Errorf("DatabasePassword: got %q", c.DatabasePassword)
	}
	if c.RateLimitWindow != 30*time.Minute {
		t.Errorf("RateLimitWindow: want 30m, got %s", c.RateLimitWindow)
	}
	if c.ExitOnUnhandled {
		t.Error("ExitOnUnhandled: want false from env")
	}
}

func TestFillFromEnv_CLITakesPrecedence(t *testing.T) {
	pfx := "TESTCFG2_"
	t.Setenv(pfx+"HTTP_PORT", "7777")
	t.Setenv(pfx+"LOG_LEVEL", "warn")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse([]string{"-http-port=9090", "-log-level=debug"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})

	if c.HTTPPort != 9090 {
		t.Errorf("HTTPPort: want 9090 (cli), got %d", c.HTTPPort)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel: want %q (cli), got %q", "debug", c.LogLevel)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 override messages, got %d: %v", len(msgs), msgs)
	}
	for _, msg := range msgs {
		if !strings.Contains(msg, "overrides env") {
			t.Errorf("unexpected override message format: %s", msg)
		}
	}
}

func TestFillFromEnv_InvalidEnvIgnored(t *testing.T) {
	pfx := "TESTCFG3_"
	t.Setenv(pfx+"HTTP_PORT", "not-a-number")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})

	if c.HTTPPort != 3000 {
		t.Errorf("HTTPPort: want 3000 (default), got %d", c.HTTPPort)
	}
	if len(msgs) != 1 || !strings.Contains(msgs[0], "ignoring invalid env") {
		t.Fatalf("unexpected messages: %v", msgs)
	}
}

func TestFillFromEnv_SecretsNotEchoed(t *testing.T) {
	pfx := "TESTCFG4_"
	t.Setenv(pfx+"DATABASE_PASSWORD", "s3cr3t")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c App
	Register(fs, &c)
	if err := fs.Parse([]string{"-database-password=cli"}); err != nil {
		t.Fatalf("flag parse: %v", err)
	}

	var msgs []string
	FillFromEnv(fs, pfx, func(format string, args ...any) {
		msgs = append(msgs, fmt.Sprintf(format, args...))
	})
	for _, m := range msgs {
		if strings.Contains(m, "s3cr3t") {
			t.Fatalf("env value leaked into log message: %s", m)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.env")
	content := "TESTCFG5_DATABASE_NAME=fromfile\nTESTCFG5_HTTP_PORT=4000\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TESTCFG5_HTTP_PORT", "5000")
	t.Cleanup(func() { os.Unsetenv("TESTCFG5_DATABASE_NAME") })

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("TESTCFG5_DATABASE_NAME"); got != "fromfile" {
		t.Errorf("DATABASE_NAME: want fromfile, got %q", got)
	}
	// real env wins over the file
	if got := os.Getenv("TESTCFG5_HTTP_PORT"); got != "5000" {
		t.Errorf("HTTP_PORT: want 5000, got %q", got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}

func TestValidate_OK(t *testing.T) {
	c := newTestConfig(t, []string{
		"-enable-pyroscope=true",
		"-pyro-server=https://pyro:4040",
		"-pyro-tenant=test-tenant",
		"-enable-tracing=true",
		"-otlp-endpoint=otel:4317",
		"-trace-sample=0.2",
		"-database-user=natours",
		"-database-password-ssm-param=/natours/db/password",
	})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_ProductionRequiresSecret(t *testing.T) {
	c := newTestConfig(t, []string{"-node-env=production"})
	wantErrContains(t, Validate(c), "JWT_SECRET")

	c = newTestConfig(t, []string{"-node-env=production", "-jwt-secret=" + strings.Repeat("x", 32)})
	if err := Validate(c); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_InvalidCombined(t *testing.T) {
	c := newTestConfig(t, []string{
		"-node-env=staging",
		"-http-port=0",
		"-admin-port=70000",
		"-log-level=nope",
		"-stacktrace-level=alsonope",
		"-trace-sample=2.0",
		"-enable-pyroscope=true",
		"-pyro-server=not-a-url",
		"-enable-tracing=true",
		"-otlp-endpoint=otel",
		"-max-error-links=0",
		"-database-uri=mongodb://user:pw@db:27017",
		"-database-password=a",
		"-database-password-ssm-param=/b",
		"-body-limit=0",
		"-rate-limit-max=0",
		"-rate-limit-window=0s",
		"-trusted-hops=9",
	})

	err := Validate(c)
	if err == nil {
		t.Fatal("Validate() expected errors, got <nil>")
	}

	wantErrContains(t, err, "invalid NODE_ENV")
	wantErrContains(t, err, "invalid HTTP_PORT")
	wantErrContains(t, err, "invalid ADMIN_PORT")
	wantErrContains(t, err, "invalid LOG_LEVEL")
	wantErrContains(t, err, "invalid STACKTRACE_LEVEL")
	wantErrContains(t, err, "invalid TRACE_SAMPLE")
	wantErrContains(t, err, "PYRO_SERVER must be a URL")
	wantErrContains(t, err, "OTLP_ENDPOINT must be host:port")
	wantErrContains(t, err, "MAX_ERROR_LINKS")
	wantErrContains(t, err, "must not embed credentials")
	wantErrContains(t, err, "set only one of")
	wantErrContains(t, err, "DATABASE_USER required")
	wantErrContains(t, err, "BODY_LIMIT")
	wantErrContains(t, err, "RATE_LIMIT_MAX")
	wantErrContains(t, err, "RATE_LIMIT_WINDOW")
	wantErrContains(t, err, "TRUSTED_HOPS")
}
