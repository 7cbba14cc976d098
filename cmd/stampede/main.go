package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stampede/internal/collector"
	"stampede/internal/config"
	"stampede/internal/coordinator"
	"stampede/internal/core"
	"stampede/internal/data"
	"stampede/internal/extract"
	"stampede/internal/journey"
	"stampede/internal/progress"
	"stampede/internal/ratelimit"
	"stampede/internal/session"
)

const (
	ExitSuccess         = 0
	ExitThresholdFailed = 1
	ExitError           = 2
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	users := flag.Int("users", 5, "number of virtual users to spawn")
	duration := flag.Duration("duration", 10*time.Second, "test duration")
	output := flag.String("output", "text", "output format: text, json")
	quiet := flag.Bool("quiet", false, "suppress progress output during test")
	verbose := flag.Bool("verbose", false, "enable debug output (request/response logging)")
	maxIterations := flag.Int("max-iterations", 0, "max journey iterations per user (0 = unlimited)")
	warmup := flag.Int("warmup", 0, "warmup iterations before collecting metrics (per-user)")
	metricsAddr := flag.String("metrics-addr", "", "address for the Prometheus scrape endpoint (empty = disabled)")
	skipPreflight := flag.Bool("skip-preflight", false, "skip the target health check before starting")
	flag.Parse()

	if *output != "text" && *output != "json" {
		fmt.Fprintf(os.Stderr, "error: --output must be 'text' or 'json', got %q\n", *output)
		os.Exit(ExitError)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	if !*skipPreflight {
		if err := preflight(cfg.Target); err != nil {
			fmt.Fprintf(os.Stderr, "error: preflight check against %s failed: %v\n", cfg.Target.Host, err)
			fmt.Fprintln(os.Stderr, "(use --skip-preflight to start anyway)")
			os.Exit(ExitError)
		}
	}

	runner, err := buildRunner(cfg, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(ExitError)
	}

	coll := collector.NewCollector()
	var reporter core.Reporter = coll

	var prom *collector.PromReporter
	if *metricsAddr != "" {
		prom = collector.NewPromReporter()
		reporter = core.MultiReporter{coll, prom}
		go serveMetrics(*metricsAddr, prom)
	}

	coord := coordinator.NewCoordinator(reporter)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interrupted := false
	go func() {
		<-sigCh
		interrupted = true
		if !*quiet {
			fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down...")
		}
		cancel()
	}()

	prog := progress.NewProgress(coll, *quiet)

	if prom != nil {
		go trackActiveUsers(ctx, coord, prom)
	}

	// CLI flags override config file values
	runnerConfig := core.RunnerConfig{
		MaxIterations: cfg.Execution.MaxIterations,
		WarmupIters:   cfg.Execution.WarmupIterations,
	}
	if *maxIterations > 0 {
		runnerConfig.MaxIterations = *maxIterations
	}
	if *warmup > 0 {
		runnerConfig.WarmupIters = *warmup
	}

	if cfg.LoadProfile != nil && len(cfg.LoadProfile.Phases) > 0 {
		runWithProfile(ctx, cfg, coord, runner, coll, prog, runnerConfig)
	} else {
		runClassic(ctx, coord, runner, coll, prog, *users, *duration, runnerConfig)
	}

	prog.Stop()

	metrics := coll.Compute()

	var thresholdResults *collector.ThresholdResults
	if cfg.Thresholds != nil {
		thresholdResults = cfg.Thresholds.Check(metrics)
	}

	if *output == "json" {
		collector.FormatJSON(os.Stdout, metrics, thresholdResults)
	} else {
		collector.FormatText(os.Stdout, metrics, thresholdResults)
	}

	if interrupted {
		os.Exit(ExitSuccess)
	}

	if thresholdResults != nil && !thresholdResults.Passed {
		if *output == "text" {
			fmt.Fprintln(os.Stderr, "\nThreshold check failed!")
		}
		os.Exit(ExitThresholdFailed)
	}

	os.Exit(ExitSuccess)
}

// preflight verifies the target is reachable and healthy before spawning
// any load. A missing health endpoint is not fatal; an unreachable host or
// an explicit unhealthy answer is.
func preflight(target config.TargetConfig) error {
	sess, err := session.New(target.Host, session.Options{Timeout: 10 * time.Second})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	page, err := sess.Visit(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	if page.StatusCode == http.StatusNotFound {
		return nil
	}
	if healthy, ok := extract.JSON(page.Body, "healthy"); ok && !healthy.Bool() {
		return fmt.Errorf("target reports unhealthy: %s", healthy.Raw)
	}
	if !page.OK() {
		return fmt.Errorf("health endpoint returned status %d", page.StatusCode)
	}
	return nil
}

func buildRunner(cfg *config.Config, verbose bool) (*journey.Runner, error) {
	var creds *data.CredentialPool
	if cfg.Pools.CredentialsFile != "" {
		var err error
		creds, err = data.LoadCredentialPool(cfg.Pools.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
	} else {
		creds = data.NewCredentialPool(cfg.Pools.Users)
	}

	var debugLogger *session.DebugLogger
	if verbose {
		debugLogger = session.NewDebugLogger(os.Stderr)
	}

	var auth *session.BasicAuth
	if cfg.Target.BasicAuthUser != "" {
		auth = &session.BasicAuth{User: cfg.Target.BasicAuthUser, Pass: cfg.Target.BasicAuthPass}
	}

	return journey.NewRunner(journey.Config{
		TargetHost: cfg.Target.Host,
		SPEntryURL: cfg.Target.SPEntryURL,
		SkipLogout: cfg.Target.SkipLogout,
		Auth:       auth,
		Timeout:    cfg.Target.Timeout,
		Debug:      debugLogger,
		Weights:    cfg.Journeys,
	}, creds, data.NewPhonePool(), data.NewEmailGenerator())
}

func serveMetrics(addr string, prom *collector.PromReporter) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		fmt.Fprintf(os.Stderr, "metrics endpoint: %v\n", err)
	}
}

func trackActiveUsers(ctx context.Context, coord *coordinator.Coordinator, prom *collector.PromReporter) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prom.SetActiveUsers(coord.ActiveActors())
		}
	}
}

func runClassic(ctx context.Context, coord *coordinator.Coordinator, runner *journey.Runner, coll *collector.Collector, prog *progress.Progress, users int, duration time.Duration, runnerConfig core.RunnerConfig) {
	if users < 1 {
		fmt.Fprintln(os.Stderr, "error: --users must be >= 1")
		os.Exit(ExitError)
	}

	prog.Printf("Stampede starting: %d virtual users, duration %v, journeys %v",
		users, duration, runner.Journeys())

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	prog.Start()
	if runnerConfig.MaxIterations > 0 || runnerConfig.WarmupIters > 0 {
		coord.SpawnWithConfig(ctx, users, runner, runnerConfig)
	} else {
		coord.Spawn(ctx, users, runner)
	}
	coord.Wait()
	coll.Close()
}

func runWithProfile(ctx context.Context, cfg *config.Config, coord *coordinator.Coordinator, runner *journey.Runner, coll *collector.Collector, prog *progress.Progress, runnerConfig core.RunnerConfig) {
	profile := cfg.LoadProfile

	prog.Printf("Stampede starting with load profile, journeys %v", runner.Journeys())

	// Find first non-zero RPS to initialize rate limiter
	var rateLimiter *ratelimit.RateLimiter
	for _, phase := range profile.Phases {
		if phase.RPS > 0 {
			rateLimiter = ratelimit.NewRateLimiter(phase.RPS)
			break
		}
	}

	runner.SetRateLimiter(rateLimiter)

	totalDuration := profile.TotalDuration() + 5*time.Second
	ctx, cancel := context.WithTimeout(ctx, totalDuration)
	defer cancel()

	prog.Start()
	coord.RunWithProfileConfig(ctx, profile, runner, rateLimiter, prog, runnerConfig)
	coord.Wait()
	coll.Close()
}
