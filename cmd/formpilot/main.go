// Package main provides the formpilot command line interface: analyze a
// web form, review the proposed field mapping, and execute a confirmed
// fill-and-submit run behind the safety gate.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/formpilot/pkg/analyzer"
	"github.com/entrhq/formpilot/pkg/audit"
	"github.com/entrhq/formpilot/pkg/browser"
	"github.com/entrhq/formpilot/pkg/config"
	"github.com/entrhq/formpilot/pkg/executor"
	"github.com/entrhq/formpilot/pkg/llm/openai"
	"github.com/entrhq/formpilot/pkg/logging"
	"github.com/entrhq/formpilot/pkg/orchestrator"
	"github.com/entrhq/formpilot/pkg/safety"
	"github.com/entrhq/formpilot/pkg/types"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration.
type CLIConfig struct {
	URL         string
	ProfilePath string
	ConfigFile  string
	AnalyzeOnly bool
	Confirm     bool
	Headful     bool
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("formpilot v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "formpilot: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags.
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.URL, "url", "", "Form URL to analyze or fill (required)")
	flag.StringVar(&cliConfig.ProfilePath, "profile", "", "Path to profile file (YAML or JSON string map)")
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.BoolVar(&cliConfig.AnalyzeOnly, "analyze-only", false, "Analyze the form and print the schema without filling")
	flag.BoolVar(&cliConfig.Confirm, "confirm", false, "Confirm submission (required to submit)")
	flag.BoolVar(&cliConfig.Headful, "headful", false, "Run the browser with a visible window")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 5*time.Minute, "Overall run timeout")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "formpilot - safety-gated web form automation\n\n")
		fmt.Fprintf(os.Stderr, "Usage: formpilot [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Analyze a form and print the proposed mapping\n")
		fmt.Fprintf(os.Stderr, "  formpilot -url https://example.com/apply -analyze-only\n\n")
		fmt.Fprintf(os.Stderr, "  # Fill without submitting\n")
		fmt.Fprintf(os.Stderr, "  formpilot -url https://example.com/apply -profile profile.yaml\n\n")
		fmt.Fprintf(os.Stderr, "  # Fill and submit (explicit confirmation required)\n")
		fmt.Fprintf(os.Stderr, "  formpilot -url https://example.com/apply -profile profile.yaml -confirm\n\n")
	}

	flag.Parse()
	return cliConfig
}

func run(ctx context.Context, cliConfig *CLIConfig) error {
	if cliConfig.URL == "" {
		flag.Usage()
		return fmt.Errorf("-url is required")
	}
	if !cliConfig.AnalyzeOnly && cliConfig.ProfilePath == "" {
		return fmt.Errorf("-profile is required unless -analyze-only is set")
	}

	cfg, err := config.Load(cliConfig.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cliConfig.Headful {
		cfg.Browser.Headless = false
	}

	logger, err := logging.NewLogger("cli")
	if err != nil {
		// The fallback stderr logger is already in place.
		logger.Warnf("file logging unavailable: %v", err)
	}
	defer logger.Close()

	auditLog, err := audit.NewLog(cfg.Audit.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	gate, err := safety.NewEngine(safety.Options{
		AllowedDomains:        cfg.Safety.AllowedDomains,
		DeniedDomains:         cfg.Safety.DeniedDomains,
		AllowLoopback:         cfg.Safety.AllowLoopback,
		MaxSubmissionsPerHour: cfg.Safety.MaxSubmissionsPerHour,
		RateWindow:            cfg.Safety.RateWindow,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to build safety engine: %w", err)
	}

	sessions := browser.NewSessionManager(browser.SessionOptions{
		Headless: cfg.Browser.Headless,
		Timeout:  cfg.Browser.NavigationTimeout,
	})
	if cfg.Browser.MaxSessions > 0 {
		sessions.SetMaxSessions(cfg.Browser.MaxSessions)
	}
	if err := sessions.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser sessions: %w", err)
	}
	defer sessions.Shutdown()

	providerOpts := []openai.ProviderOption{
		openai.WithModel(cfg.LLM.Model),
		openai.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	provider, err := openai.NewProvider("", providerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}

	formAnalyzer := analyzer.New(sessions, provider, logger,
		analyzer.WithNavigationTimeout(cfg.Browser.NavigationTimeout),
		analyzer.WithPromptTokenBudget(cfg.LLM.PromptTokenLimit),
	)

	runner := executor.New(sessions, logger,
		executor.WithRetryPolicy(executor.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
		}),
		executor.WithTimeouts(cfg.Browser.NavigationTimeout, cfg.Browser.ActionTimeout, cfg.Browser.SubmitTimeout),
	)

	pipeline := orchestrator.New(formAnalyzer, gate, runner, auditLog, logger,
		orchestrator.WithPlanTTL(cfg.Safety.PlanTTL),
	)

	if cliConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliConfig.Timeout)
		defer cancel()
	}

	if cliConfig.AnalyzeOnly {
		return analyzeOnly(ctx, pipeline, cliConfig.URL)
	}

	profile, err := config.LoadProfile(cliConfig.ProfilePath)
	if err != nil {
		return err
	}

	result, runErr := pipeline.Run(ctx, orchestrator.RunRequest{
		URL:           cliConfig.URL,
		Profile:       profile,
		Submit:        cliConfig.Confirm,
		UserConfirmed: cliConfig.Confirm,
		Actor:         "cli",
	})
	if result != nil {
		if err := printJSON(result); err != nil {
			return err
		}
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", statusOf(result), runErr)
	}

	if !cliConfig.Confirm {
		fmt.Fprintln(os.Stderr, "Fields filled without submission. Re-run with -confirm to submit.")
	}
	return nil
}

// analyzeOnly runs the propose phase and prints the schema.
func analyzeOnly(ctx context.Context, pipeline *orchestrator.Orchestrator, url string) error {
	plan, err := pipeline.Propose(ctx, orchestrator.ProposeRequest{URL: url, Actor: "cli"})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return printJSON(plan)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func statusOf(result *types.RunResult) types.RunStatus {
	if result == nil {
		return types.StatusFailed
	}
	return result.Status
}
