package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/canyonroad/agentsh-runloop/internal/runloop"
)

// ResourceClient is the slice of the Runloop API the harness depends on.
// *runloop.Client satisfies it; tests substitute fakes.
type ResourceClient interface {
	CreateBlueprint(ctx context.Context, req runloop.CreateBlueprintRequest) (*runloop.Blueprint, error)
	GetBlueprint(ctx context.Context, id string) (*runloop.Blueprint, error)
	GetBlueprintLogs(ctx context.Context, id string) (string, error)
	CreateDevbox(ctx context.Context, req runloop.CreateDevboxRequest) (*runloop.Devbox, error)
	GetDevbox(ctx context.Context, id string) (*runloop.Devbox, error)
	ExecuteCommand(ctx context.Context, devboxID, command string, timeout time.Duration) (*runloop.ExecutionResult, error)
	ShutdownDevbox(ctx context.Context, id string) error
}

// BuildError reports a failed blueprint build together with whatever build
// log could be retrieved. Logs may be empty when retrieval itself failed.
type BuildError struct {
	BlueprintID string
	Logs        string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("blueprint %s build failed", e.BlueprintID)
}

// StartupError reports a devbox that reached a terminal state other than
// running.
type StartupError struct {
	DevboxID string
	Status   runloop.DevboxStatus
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("devbox %s failed to start: %s", e.DevboxID, e.Status)
}

// Provisioner drives the two-stage sandbox lifecycle: build an immutable
// image, then boot a live devbox from it.
type Provisioner struct {
	client ResourceClient
	cfg    Config
	obs    *Observability
	log    *slog.Logger
}

func NewProvisioner(client ResourceClient, cfg Config, obs *Observability, log *slog.Logger) *Provisioner {
	if log == nil {
		log = slog.Default()
	}
	return &Provisioner{client: client, cfg: cfg, obs: obs, log: log}
}

func (p *Provisioner) CreateBlueprint(ctx context.Context, env Environment) (*runloop.Blueprint, error) {
	bp, err := p.client.CreateBlueprint(ctx, env.BuildRequest(p.cfg.BlueprintName))
	if err != nil {
		p.obs.MarkProvision(ctx, "blueprint", "create_failed")
		return nil, fmt.Errorf("create blueprint: %w", err)
	}
	p.log.Info("blueprint created", "id", bp.ID, "name", bp.Name)
	return bp, nil
}

// AwaitBlueprint polls at a fixed interval until the build reaches a
// terminal status. There is no retry cap; image builds can take minutes.
func (p *Provisioner) AwaitBlueprint(ctx context.Context, id string) (*runloop.Blueprint, error) {
	ctx, span := p.obs.StartSpan(ctx, "blueprint.build", attribute.String("blueprint_id", id))
	defer span.End()

	interval := time.Duration(p.cfg.BuildPollSec) * time.Second
	for {
		bp, err := p.client.GetBlueprint(ctx, id)
		if err != nil {
			p.obs.MarkProvision(ctx, "blueprint", "poll_failed")
			return nil, fmt.Errorf("poll blueprint %s: %w", id, err)
		}
		switch bp.Status {
		case runloop.BlueprintBuildComplete:
			p.obs.MarkProvision(ctx, "blueprint", "build_complete")
			p.log.Info("blueprint build complete", "id", id)
			return bp, nil
		case runloop.BlueprintBuildFailed:
			p.obs.MarkProvision(ctx, "blueprint", "build_failed")
			logs, logErr := p.client.GetBlueprintLogs(ctx, id)
			if logErr != nil {
				p.log.Warn("build log retrieval failed", "id", id, "error", logErr)
				logs = ""
			}
			return nil, &BuildError{BlueprintID: id, Logs: logs}
		}
		p.log.Debug("blueprint building", "id", id, "status", string(bp.Status))
		if err := sleepCtx(ctx, interval); err != nil {
			return nil, err
		}
	}
}

func (p *Provisioner) CreateDevbox(ctx context.Context, blueprintID string) (*runloop.Devbox, error) {
	db, err := p.client.CreateDevbox(ctx, runloop.CreateDevboxRequest{BlueprintID: blueprintID})
	if err != nil {
		p.obs.MarkProvision(ctx, "devbox", "create_failed")
		return nil, fmt.Errorf("create devbox: %w", err)
	}
	p.log.Info("devbox created", "id", db.ID)
	return db, nil
}

// AwaitDevbox polls until the devbox is running, then holds for the settle
// window: the shim and proxy inside the box come up after the platform
// reports running.
func (p *Provisioner) AwaitDevbox(ctx context.Context, id string) (*runloop.Devbox, error) {
	ctx, span := p.obs.StartSpan(ctx, "devbox.boot", attribute.String("devbox_id", id))
	defer span.End()

	interval := time.Duration(p.cfg.BootPollSec) * time.Second
	for {
		db, err := p.client.GetDevbox(ctx, id)
		if err != nil {
			p.obs.MarkProvision(ctx, "devbox", "poll_failed")
			return nil, fmt.Errorf("poll devbox %s: %w", id, err)
		}
		switch db.Status {
		case runloop.DevboxRunning:
			p.obs.MarkProvision(ctx, "devbox", "running")
			p.log.Info("devbox running", "id", id)
			if settle := time.Duration(p.cfg.SettleSec) * time.Second; settle > 0 {
				p.log.Debug("settling before first command", "seconds", p.cfg.SettleSec)
				if err := sleepCtx(ctx, settle); err != nil {
					return nil, err
				}
			}
			return db, nil
		case runloop.DevboxFailed, runloop.DevboxShutdown:
			p.obs.MarkProvision(ctx, "devbox", string(db.Status))
			return nil, &StartupError{DevboxID: id, Status: db.Status}
		}
		p.log.Debug("devbox starting", "id", id, "status", string(db.Status))
		if err := sleepCtx(ctx, interval); err != nil {
			return nil, err
		}
	}
}

// TeardownDevbox requests shutdown; failures are logged, never returned.
func (p *Provisioner) TeardownDevbox(ctx context.Context, id string) {
	requestShutdown(ctx, p.client, p.obs, p.log, id)
}

func requestShutdown(ctx context.Context, client ResourceClient, obs *Observability, log *slog.Logger, id string) {
	if id == "" {
		return
	}
	if log == nil {
		log = slog.Default()
	}
	if err := client.ShutdownDevbox(ctx, id); err != nil {
		obs.MarkProvision(ctx, "devbox", "shutdown_failed")
		log.Warn("devbox shutdown failed", "id", id, "error", err)
		return
	}
	obs.MarkProvision(ctx, "devbox", "shutdown")
	log.Info("devbox shut down", "id", id)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
