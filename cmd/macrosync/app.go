package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/input-output-hk/macrosync/automation"
	"github.com/input-output-hk/macrosync/config"
	"github.com/input-output-hk/macrosync/discovery"
	mserrors "github.com/input-output-hk/macrosync/errors"
	"github.com/input-output-hk/macrosync/executor"
	"github.com/input-output-hk/macrosync/orchestrator"
	"github.com/input-output-hk/macrosync/secrets"
	awssecrets "github.com/input-output-hk/macrosync/secrets/providers/aws"
	"github.com/input-output-hk/macrosync/secrets/providers/env"
	"github.com/input-output-hk/macrosync/statusserver"
	"github.com/input-output-hk/macrosync/store"
	"github.com/input-output-hk/macrosync/store/azblob"
	"github.com/input-output-hk/macrosync/store/memory"
	"github.com/input-output-hk/macrosync/store/minio"
	"github.com/input-output-hk/macrosync/store/s3"
	"github.com/input-output-hk/macrosync/workspace"
)

// engineRetryDelay is the pause between engine attempts.
const engineRetryDelay = time.Second

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	orch   *orchestrator.Orchestrator
	status *statusserver.Server
}

type appDeps struct {
	secretProviders []secrets.Provider
}

type appOption func(*appDeps)

// withSecretProviders registers extra secret providers.
func withSecretProviders(providers ...secrets.Provider) appOption {
	return func(d *appDeps) {
		d.secretProviders = append(d.secretProviders, providers...)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...appOption) (*app, error) {
	deps := &appDeps{}
	for _, opt := range opts {
		opt(deps)
	}

	descriptor, err := resolveDescriptor(ctx, cfg, logger, deps)
	if err != nil {
		return nil, err
	}
	logger.Info("using object store", "descriptor", descriptor.String())

	st, err := openStore(ctx, descriptor, cfg, logger)
	if err != nil {
		return nil, err
	}

	ws, err := workspace.NewOS(cfg.Workspace.Dir,
		workspace.WithPolicy(workspace.Policy(cfg.Workspace.Policy)),
		workspace.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(st, newDiscoverer(cfg, logger), newRunner(cfg, logger), ws,
		orchestrator.WithConfig(orchestratorConfig(cfg)),
		orchestrator.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: st, orch: orch}
	if cfg.Status.Listen != "" {
		a.status = statusserver.New(orch, orch.Quarantine(), statusserver.WithLogger(logger))
	}
	return a, nil
}

func resolveDescriptor(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *appDeps) (*store.Descriptor, error) {
	const op = "macrosync.resolveDescriptor"

	ref, err := secrets.ParseRef(cfg.Store.Connection)
	if err != nil {
		return nil, mserrors.Wrap(mserrors.CodeInvalidConfig, op, err)
	}

	manager := secrets.NewManager(
		secrets.WithLogger(logger),
		secrets.WithProviders(env.New()),
		secrets.WithProviders(deps.secretProviders...))
	defer manager.Close()

	if ref.Provider == awssecrets.Name {
		provider, err := awssecrets.New(ctx, awssecrets.WithLogger(logger))
		if err != nil {
			return nil, mserrors.Wrap(mserrors.CodeInvalidConfig, op, err)
		}
		if err := manager.Register(provider); err != nil {
			return nil, mserrors.Wrap(mserrors.CodeInvalidConfig, op, err)
		}
	}

	raw, err := manager.ResolveString(ctx, cfg.Store.Connection)
	if err != nil {
		code := mserrors.CodeOf(err)
		if code != mserrors.CodeUnauthorized {
			code = mserrors.CodeInvalidConfig
		}
		return nil, mserrors.Wrap(code, op, err)
	}

	d, err := store.ParseDescriptor(cfg.Store.Backend, raw)
	if err != nil {
		return nil, mserrors.Wrap(mserrors.CodeInvalidConfig, op, err)
	}
	return d, nil
}

func openStore(ctx context.Context, d *store.Descriptor, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	const op = "macrosync.openStore"

	var (
		st  store.Store
		err error
	)
	switch d.Backend {
	case store.BackendS3:
		st, err = s3.NewFromDescriptor(ctx, d, s3.WithLogger(logger))
	case store.BackendMinio:
		st, err = minio.New(d, minio.WithLogger(logger))
	case store.BackendAzure:
		st, err = azblob.New(d, azblob.WithLogger(logger))
	case store.BackendMemory:
		st = memory.New(cfg.Containers.Input, cfg.Containers.Output)
	default:
		err = fmt.Errorf("unsupported backend %q", d.Backend)
	}
	if err != nil {
		return nil, mserrors.Wrap(mserrors.CodeInvalidConfig, op, err)
	}
	return st, nil
}

func newDiscoverer(cfg *config.Config, logger *slog.Logger) discovery.Discoverer {
	opts := []discovery.Option{
		discovery.WithKeywords(cfg.Discovery.Keywords...),
		discovery.WithLogger(logger),
	}
	if c := cfg.Discovery.Command; c != nil {
		opts = append(opts, discovery.WithSources(
			discovery.TextSource{},
			discovery.ArchiveSource{},
			discovery.CommandSource{
				Runner:  executor.New(executor.WithLogger(logger)),
				Program: c.Program,
				Args:    c.Args,
				Timeout: c.Timeout,
			},
		))
	} else {
		logger.Warn("discovery.command is not set: only exported source files and OpenDocument archives are scanned, " +
			"binary Office documents such as .xlsm and .xlsb will fail to open")
	}
	return discovery.New(opts...)
}

func newRunner(cfg *config.Config, logger *slog.Logger) automation.Runner {
	exec := executor.New(
		executor.WithRetry(cfg.Engine.Retries, engineRetryDelay),
		executor.WithLogger(logger))

	return automation.NewCommandRunner(cfg.Engine.Program,
		automation.WithArgs(cfg.Engine.Args...),
		automation.WithTimeout(cfg.Engine.Timeout),
		automation.WithEnv(cfg.Engine.Env),
		automation.WithExecutor(exec),
		automation.WithLogger(logger))
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	oc := orchestrator.DefaultConfig()
	oc.InputContainer = cfg.Containers.Input
	oc.OutputContainer = cfg.Containers.Output
	oc.Parameter = cfg.Parameter
	oc.Interval = cfg.Interval
	oc.MaxAttempts = cfg.MaxAttempts
	oc.DryRun = cfg.DryRun
	oc.Backoff = orchestrator.BackoffConfig{
		Enabled:     cfg.Backoff.Enabled,
		Multiplier:  cfg.Backoff.Multiplier,
		MaxInterval: cfg.Backoff.MaxInterval,
	}
	return oc
}

// probe lists the input container once. Credential and missing-container
// failures are fatal; anything else is logged and left to the poll loop.
func (a *app) probe(ctx context.Context) error {
	_, err := a.store.ListNames(ctx, a.cfg.Containers.Input)
	switch {
	case err == nil:
		return nil
	case store.IsCredentialError(err):
		return mserrors.Wrap(mserrors.CodeUnauthorized, "macrosync.probe", err)
	case errors.Is(err, store.ErrContainerNotFound):
		return mserrors.Wrap(mserrors.CodeInvalidConfig, "macrosync.probe", err)
	case ctx.Err() != nil:
		return mserrors.Wrap(mserrors.CodeCanceled, "macrosync.probe", err)
	}
	a.logger.Warn("startup probe failed, continuing", "error", err)
	return nil
}

// run executes one cycle or loops until ctx is cancelled. The status server,
// if configured, runs alongside the loop.
func (a *app) run(ctx context.Context, once bool) error {
	if once {
		res, err := a.orch.PollCycle(ctx)
		if err != nil {
			return err
		}
		a.logger.Info("single cycle complete",
			"work_items", len(res.WorkItems),
			"uploaded", len(res.Uploaded()),
			"failures", len(res.Errors))
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statusErr := make(chan error, 1)
	if a.status != nil {
		go func() {
			statusErr <- a.status.ListenAndServe(ctx, a.cfg.Status.Listen)
		}()
	} else {
		close(statusErr)
	}

	runErr := a.orch.Run(ctx)
	cancel()
	if err := <-statusErr; err != nil {
		a.logger.Error("status server failed", "error", err)
	}
	return runErr
}
