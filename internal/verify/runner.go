package verify

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Runner executes the probe catalog against one running devbox, tallies
// verdicts, and streams human-readable progress to out.
type Runner struct {
	client ResourceClient
	cfg    Config
	obs    *Observability
	log    *slog.Logger
	out    io.Writer
}

func NewRunner(client ResourceClient, cfg Config, obs *Observability, log *slog.Logger, out io.Writer) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{client: client, cfg: cfg, obs: obs, log: log, out: out}
}

// RunWithDevbox runs every probe in cats sequentially. The devbox shutdown
// request is registered before the first probe, so it happens exactly once
// on every exit path, a panic escaping the loop included.
func (r *Runner) RunWithDevbox(ctx context.Context, devboxID string, cats []Category) Report {
	defer r.teardown(devboxID)
	return r.run(ctx, devboxID, cats)
}

// teardown runs on its own context: the run context may already be dead.
func (r *Runner) teardown(devboxID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	requestShutdown(ctx, r.client, r.obs, r.log, devboxID)
}

func (r *Runner) run(ctx context.Context, devboxID string, cats []Category) Report {
	report := Report{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Endpoint:    r.cfg.BaseURL,
		DevboxID:    devboxID,
		Results:     make([]ProbeResult, 0, ProbeCount(cats)),
	}
	timeout := time.Duration(r.cfg.CommandTimeoutSec) * time.Second

	for _, cat := range cats {
		printCategoryHeader(r.out, cat)
		for _, probe := range cat.Probes {
			result := r.runProbe(ctx, devboxID, cat.Key, probe, timeout)
			report.Add(result.Verdict)
			report.Results = append(report.Results, result)
			printProbeResult(r.out, result)
		}
	}

	printSummary(r.out, report.RunSummary)
	return report
}

// runProbe executes one command and classifies the outcome. Timeouts and
// transport failures land in the result as Errored; they never abort the
// run.
func (r *Runner) runProbe(ctx context.Context, devboxID, category string, probe Probe, timeout time.Duration) ProbeResult {
	ctx, span := r.obs.StartSpan(ctx, "verify.probe",
		attribute.String("category", category),
		attribute.String("probe", probe.Name),
	)
	defer span.End()

	start := time.Now()
	exec, err := r.client.ExecuteCommand(ctx, devboxID, probe.Command, timeout)
	verdict, reason := Classify(probe.Expect, exec, err)
	durationMS := time.Since(start).Milliseconds()
	r.obs.MarkProbe(ctx, category, verdict, durationMS)

	result := ProbeResult{
		Category:    category,
		Name:        probe.Name,
		Description: probe.Description,
		Command:     probe.Command,
		Expect:      probe.Expect,
		Verdict:     verdict,
		DurationMS:  durationMS,
	}
	if err != nil {
		result.Error = reason
	} else {
		result.Reason = reason
		if exec != nil {
			result.ExitStatus = exec.ExitStatus
			result.Output = truncate(combinedOutput(exec), r.cfg.OutputLimit)
		}
	}
	r.log.Debug("probe executed",
		"category", category,
		"probe", probe.Name,
		"verdict", string(verdict),
		"duration_ms", durationMS,
	)
	return result
}
