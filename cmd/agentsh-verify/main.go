package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/canyonroad/agentsh-runloop/internal/runloop"
	"github.com/canyonroad/agentsh-runloop/internal/verify"
)

func main() {
	os.Exit(run())
}

func run() int {
	baseURL := flag.String("base-url", envOr("RUNLOOP_BASE_URL", ""), "Runloop API base URL")
	apiKey := flag.String("api-key", envOr("RUNLOOP_API_KEY", ""), "Runloop API key")
	configPath := flag.String("config", "", "Path to harness config file (yaml or json)")
	assetsDir := flag.String("assets", "", "Directory with Dockerfile, default.yaml, config.yaml (default: embedded)")
	blueprintID := flag.String("blueprint-id", "", "Reuse an existing blueprint instead of building one")
	blueprintName := flag.String("blueprint-name", "", "Blueprint name (default from config)")
	categories := flag.String("category", "all", "Comma-separated categories: ai_agent,cloud_infra,isolation,allowed,all")
	settleSec := flag.Int("settle-sec", -1, "Seconds to wait after the devbox reports running (-1: config value)")
	format := flag.String("format", "text", "Output format: text|json")
	outputPath := flag.String("out", "", "Write full report JSON to this file")
	otlpEndpoint := flag.String("otlp-endpoint", envOr("OTEL_EXPORTER_OTLP_ENDPOINT", ""), "OTLP gRPC endpoint for traces (optional)")
	strict := flag.Bool("strict", false, "Exit non-zero if any probe fails or errors")
	verbose := flag.Bool("verbose", false, "Debug logging")
	flag.Parse()

	if strings.TrimSpace(*apiKey) == "" {
		return fail("RUNLOOP_API_KEY or -api-key is required")
	}

	cfg, err := verify.LoadConfig(*configPath)
	if err != nil {
		return fail("failed to load config: " + err.Error())
	}
	if strings.TrimSpace(*baseURL) != "" {
		cfg.BaseURL = strings.TrimSpace(*baseURL)
	}
	if strings.TrimSpace(*blueprintName) != "" {
		cfg.BlueprintName = strings.TrimSpace(*blueprintName)
	}
	if *settleSec >= 0 {
		cfg.SettleSec = *settleSec
	}
	if strings.TrimSpace(*otlpEndpoint) != "" {
		cfg.Observer.OTLPEndpoint = strings.TrimSpace(*otlpEndpoint)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()
	obs, err := verify.SetupObservability(ctx, cfg.Observer)
	if err != nil {
		return fail("failed to set up observability: " + err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			logger.Error("observability shutdown failed", "error", err)
		}
	}()

	selected, err := verify.SelectCategories(verify.Catalog(), *categories)
	if err != nil {
		return fail(err.Error())
	}

	env := verify.DefaultEnvironment()
	if strings.TrimSpace(*assetsDir) != "" {
		env, err = verify.LoadEnvironment(strings.TrimSpace(*assetsDir))
		if err != nil {
			return fail("failed to load environment assets: " + err.Error())
		}
	}

	client := runloop.NewClient(runloop.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  *apiKey,
		Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second,
	})
	prov := verify.NewProvisioner(client, cfg, obs, logger)

	// In JSON mode stdout carries only the report document; progress is
	// suppressed rather than mixed in.
	out := io.Writer(os.Stdout)
	jsonFormat := strings.EqualFold(strings.TrimSpace(*format), "json")
	if jsonFormat {
		out = io.Discard
	}

	verify.PrintBanner(out, "agentsh + Runloop Security Verification")

	var bp *runloop.Blueprint
	if reuseID := strings.TrimSpace(*blueprintID); reuseID != "" {
		fmt.Fprintf(out, "\n[1] Reusing Blueprint %s...\n", reuseID)
		bp, err = prov.AwaitBlueprint(ctx, reuseID)
	} else {
		fmt.Fprintln(out, "\n[1] Creating Blueprint with agentsh...")
		fmt.Fprintln(out, "    This may take a few minutes on first run (building image)")
		bp, err = prov.CreateBlueprint(ctx, env)
		if err != nil {
			return fail(err.Error())
		}
		fmt.Fprintf(out, "    Blueprint ID: %s\n", bp.ID)
		fmt.Fprintln(out, "    Waiting for build to complete...")
		bp, err = prov.AwaitBlueprint(ctx, bp.ID)
	}
	if err != nil {
		var buildErr *verify.BuildError
		if errors.As(err, &buildErr) && buildErr.Logs != "" {
			fmt.Fprintln(os.Stderr, "build log:")
			fmt.Fprintln(os.Stderr, buildErr.Logs)
		}
		return fail(err.Error())
	}
	fmt.Fprintln(out, "    Blueprint build complete!")

	fmt.Fprintln(out, "\n[2] Creating Devbox from Blueprint...")
	created, err := prov.CreateDevbox(ctx, bp.ID)
	if err != nil {
		return fail(err.Error())
	}
	fmt.Fprintf(out, "    Devbox ID: %s\n", created.ID)
	fmt.Fprintln(out, "    Waiting for Devbox to be ready...")

	devbox, err := prov.AwaitDevbox(ctx, created.ID)
	if err != nil {
		prov.TeardownDevbox(ctx, created.ID)
		return fail(err.Error())
	}
	fmt.Fprintln(out, "    Devbox is running!")

	fmt.Fprintln(out, "\n[3] Running security verification...")
	runner := verify.NewRunner(client, cfg, obs, logger, out)
	report := runner.RunWithDevbox(ctx, devbox.ID, selected)
	report.BlueprintID = bp.ID

	if jsonFormat {
		if err := verify.EncodeReport(os.Stdout, report); err != nil {
			return fail(err.Error())
		}
	}
	if strings.TrimSpace(*outputPath) != "" {
		if err := verify.WriteReportFile(strings.TrimSpace(*outputPath), report); err != nil {
			return fail(err.Error())
		}
	}

	if *strict && (report.Failed > 0 || report.Errored > 0) {
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func fail(message string) int {
	fmt.Fprintln(os.Stderr, "error:", message)
	return 2
}
