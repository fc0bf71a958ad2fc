package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/tours-api/internal/auth"
	"github.com/keithlinneman/tours-api/internal/cfg"
	"github.com/keithlinneman/tours-api/internal/errorhttp"
	"github.com/keithlinneman/tours-api/internal/health"
	"github.com/keithlinneman/tours-api/internal/httpmw"
	"github.com/keithlinneman/tours-api/internal/opshttp"
	"github.com/keithlinneman/tours-api/internal/ratelimit"
	"github.com/keithlinneman/tours-api/internal/reviewhttp"
	"github.com/keithlinneman/tours-api/internal/routine"
	"github.com/keithlinneman/tours-api/internal/secrets"
	"github.com/keithlinneman/tours-api/internal/stage"
	"github.com/keithlinneman/tours-api/internal/store"
	"github.com/keithlinneman/tours-api/internal/tourhttp"
	"github.com/keithlinneman/tours-api/internal/userhttp"
	"github.com/keithlinneman/tours-api/internal/viewhttp"
	"github.com/keithlinneman/tours-api/internal/webassets"

	"github.com/keithlinneman/tours-api/internal/httpserver"
	"github.com/keithlinneman/tours-api/internal/log"
	"github.com/keithlinneman/tours-api/internal/metrics"
	"github.com/keithlinneman/tours-api/internal/otelx"
	"github.com/keithlinneman/tours-api/internal/prof"
	v "github.com/keithlinneman/tours-api/internal/version"
)

const envFile = "config.env"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.String())
		return 0
	}

	// config.env never overrides variables already set in the environment
	if err := cfg.LoadEnvFile(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}
	cfg.FillFromEnv(flag.CommandLine, "TOURS_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// dev convenience: an empty secret gets a per-process random one, so
	// sessions do not survive a restart. Validate rejects this in production.
	if conf.JWTSecret == "" && !conf.Production() {
		conf.JWTSecret = randomSecret()
	}

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}

	// Setup logging
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Env:               conf.Env,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		return 1
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"env", conf.Env,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"trace_sample", conf.TraceSample,
		"database_name", conf.DatabaseName,
		"public_dir", conf.PublicDir,
		"rate_limit_max", conf.RateLimitMax,
		"rate_limit_window", conf.RateLimitWindow,
		"body_limit", conf.BodyLimit,
		"trusted_hops", conf.TrustedHops,
		"exit_on_unhandled", conf.ExitOnUnhandled,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"env":       conf.Env,
			"version":   vi.Version,
			"commit":    vi.ShortCommit(),
		},
		OnStateChange: m.SetProfilingActive,
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer stopProf()

	// Insecure is true because we only export to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:     conf.EnableTracing,
		Endpoint:    conf.OTLPEndpoint,
		Insecure:    true,
		Sample:      conf.TraceSample,
		Service:     v.AppName,
		Component:   "server",
		Version:     vi.Version,
		Environment: conf.Env,
		Logger:      L,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Database password: literal value or SSM SecureString
	var resolver *secrets.Resolver
	if conf.DatabasePasswordSSMParam != "" {
		resolver, err = secrets.NewDefaultResolver(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			return 1
		}
	}
	dbPassword, err := resolver.Resolve(ctx, secrets.Source{
		Value:    conf.DatabasePassword,
		SSMParam: conf.DatabasePasswordSSMParam,
	})
	if err != nil {
		L.Error(ctx, err, "failed to resolve database password")
		return 1
	}

	db, err := store.Open(store.ConnConfig{
		URI:        conf.DatabaseURI,
		Username:   conf.DatabaseUser,
		Password:   dbPassword,
		Database:   conf.DatabaseName,
		AuthSource: conf.DatabaseAuthSource,
		Timeout:    conf.DatabaseConnectTimeout,
	})
	if err != nil {
		L.Error(ctx, err, "invalid database configuration")
		return 1
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(closeCtx); err != nil {
			L.Warn(context.Background(), "database disconnect failed", "error", err)
		}
	}()
	tours, reviews, users := db.Tours(), db.Reviews(), db.Users()

	signer, err := auth.NewSigner(conf.JWTSecret, conf.JWTExpiresIn)
	if err != nil {
		L.Error(ctx, err, "failed to create token signer")
		return 1
	}

	engine := viewhttp.NewEngine(webassets.TemplatesFS())
	errs := errorhttp.New(errorhttp.Options{
		Production: conf.Production(),
		Logger:     L,
		Pages:      engine,
		OnError:    m.ObserveHandledError,
	})
	guard := auth.Guard{Signer: signer, Users: users, Errors: errs}

	reviewAPI := reviewhttp.NewAPI(reviews, errs, guard, L)
	tourAPI := tourhttp.NewAPI(tours, errs, guard, L)
	tourAPI.Reviews = reviewAPI.Router()
	userAPI := userhttp.NewAPI(users, errs, guard, L)
	userAPI.SecureCookies = conf.Production()
	viewAPI := viewhttp.NewAPI(engine, tours, reviews, errs, guard, L)

	// per-client limiter for /api
	limiter := ratelimit.New(ctx,
		ratelimit.WithWindow(conf.RateLimitMax, conf.RateLimitWindow),
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first denial until the visitor is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	var public fs.FS = webassets.PublicFS()
	if conf.PublicDir != "" {
		public = os.DirFS(conf.PublicDir)
	}

	pipe, err := stage.Build(stage.Options{
		Production: conf.Production(),
		Logger:     L,
		Views:      engine,
		PublicFS:   public,
		BodyLimit:  conf.BodyLimit,
		Limiter:    limiter,
		Errors:     errs,
		Mounts: []stage.Mount{
			{Prefix: "/api/v1/tours", Router: tourAPI.Router()},
			{Prefix: "/api/v1/reviews", Router: reviewAPI.Router()},
			{Prefix: "/api/v1/users", Router: userAPI.Router()},
			{Prefix: "/", Router: viewAPI.Router()},
		},
	})
	if err != nil {
		L.Error(ctx, err, "failed to build request pipeline")
		return 1
	}

	// shutdown is requested by a signal or by an unhandled background failure
	failed := make(chan routine.Failure, 1)
	tasks := routine.NewManager(routine.Options{
		Logger: L,
		OnUnhandled: func(f routine.Failure) {
			m.IncUnhandledFailure(f.Task)
			if !conf.ExitOnUnhandled {
				return
			}
			select {
			case failed <- f:
			default:
			}
		},
	})

	tasks.Go(ctx, "database", func(ctx context.Context) error {
		if err := db.Connect(ctx); err != nil {
			return err
		}
		m.SetDBConnected(true)
		L.Info(ctx, "database connection successful", "database", conf.DatabaseName)
		if err := db.EnsureIndexes(ctx); err != nil {
			L.Warn(ctx, "failed to ensure indexes", "error", err)
		}
		return nil
	})

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Ping("database", func() health.Pinger { return db }, health.DefaultPingTimeout),
	)

	siteHTTPStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Handler:      pipe,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		return 1
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// admin/ops listener: metrics, health checks and pprof
	// non-public peers only, forwarded requests are rejected
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return 1
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		// worst case systemd kills the process after its start timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	code := 0
	select {
	case <-ctx.Done():
		L.Info(context.Background(), "shutdown signal received")
	case f := <-failed:
		L.Warn(context.Background(), "shutting down after unhandled background failure", "task", f.Task)
		code = 1
	}
	stop()

	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	// give load balancer health checks time to notice, unless this is a
	// failure exit or a second signal arrives
	if code == 0 {
		drain(L, conf.Production())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "app http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := tasks.Wait(); err != nil {
		L.Warn(context.Background(), "background tasks ended with errors", "error", err)
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	L.Info(context.Background(), "shutdown complete", "exit_code", code)
	return code
}

// drain waits for in-flight requests and load balancer checks. Development
// skips the wait.
func drain(L log.Logger, production bool) {
	if !production {
		return
	}
	const period = 60 * time.Second
	L.Info(context.Background(), "waiting for in-flight requests and load balancer health checks to drain", "period", period)
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(forceCh)
	select {
	case <-time.After(period):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET when the unit has Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		_ = conn.Close()
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
