// Package orchestrate sequences a full build or publish run: resolve and
// validate the request, prepare any generated artifacts, construct the
// external command, drive it through a process session, and classify the
// captured output into a final verdict.
package orchestrate

import (
	"context"
	"log/slog"
	"os"

	"github.com/buildferry/buildferry/internal/classify"
	"github.com/buildferry/buildferry/internal/command"
	"github.com/buildferry/buildferry/internal/engine"
	"github.com/buildferry/buildferry/internal/session"
)

// BuildResult is the outcome of one build run.
type BuildResult struct {
	Success   bool
	Reason    string
	OutputDir string
	Log       string

	// Err is set when the process failed to produce a classifiable exit,
	// for example when it crashed on a signal.
	Err error
}

// BuildOptions carries per-run caller decisions.
type BuildOptions struct {
	// ConfirmOverwrite is consulted when the output directory already
	// exists. Returning true authorizes deleting it before the build.
	// When nil or returning false, the run stops with BuildExistsError.
	ConfirmOverwrite func(dir string) bool
}

// BuildConfig wires a BuildOrchestrator.
type BuildConfig struct {
	Logger    *slog.Logger
	Callbacks session.Callbacks
}

// BuildOrchestrator drives one build target. A single orchestrator owns a
// single session; concurrent builds use separate orchestrators.
type BuildOrchestrator struct {
	logger  *slog.Logger
	locator *engine.Locator
	session *session.Session
}

// NewBuildOrchestrator returns a build orchestrator logging through logger
// and forwarding session events to the given callbacks.
func NewBuildOrchestrator(cfg BuildConfig) *BuildOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BuildOrchestrator{
		logger:  logger,
		locator: engine.NewLocator(logger),
		session: session.New(session.Config{
			Name:      "build",
			Logger:    logger,
			Callbacks: cfg.Callbacks,
		}),
	}
}

// Session exposes the underlying process session, mainly for state
// inspection by callers hosting live displays.
func (o *BuildOrchestrator) Session() *session.Session { return o.session }

// Cancel forwards to the running session.
func (o *BuildOrchestrator) Cancel() session.CancelResult { return o.session.Cancel() }

// Command resolves the request and returns the build command without
// running it. Used for dry-run display.
func (o *BuildOrchestrator) Command(req command.BuildRequest) (command.External, error) {
	eng, uat, err := o.resolve(req)
	if err != nil {
		return command.External{}, err
	}
	return command.BuildCookRun(uat, req, eng), nil
}

// Run resolves the engine, checks the output directory, and drives the
// build tool to completion. Discovery and environment failures return an
// error before any process spawns; a spawned process that fails is
// reported through the result, not the error.
func (o *BuildOrchestrator) Run(ctx context.Context, req command.BuildRequest, opts BuildOptions) (BuildResult, error) {
	if o.session.State().IsActive() {
		return BuildResult{}, ErrRunInProgress
	}

	eng, uat, err := o.resolve(req)
	if err != nil {
		return BuildResult{}, err
	}

	if err := o.clearOutputDir(req.OutputDir, opts); err != nil {
		return BuildResult{}, err
	}

	cmd := command.BuildCookRun(uat, req, eng)
	o.logger.Info("build_starting",
		"project", eng.ProjectFile,
		"engine_version", eng.Version,
		"platform", string(req.Platform),
		"configuration", string(req.Configuration),
		"command", cmd.Redacted(),
	)

	outcome, err := o.session.Run(ctx, cmd)
	if err != nil {
		return BuildResult{Log: o.session.Log(), Err: err}, nil
	}
	if o.session.State() == session.StateCancelled {
		// Partial output from an interrupted cook is not usable. Cleanup is
		// best effort; a leftover directory is the caller's to resolve.
		if rmErr := os.RemoveAll(req.OutputDir); rmErr != nil {
			o.logger.Warn("partial_output_cleanup_failed", "dir", req.OutputDir, "error", rmErr)
		}
		return BuildResult{Reason: "cancelled", Log: o.session.Log()}, nil
	}
	if outcome.Status == session.ExitCrash {
		return BuildResult{
			Reason: outcome.Err.Error(),
			Log:    o.session.Log(),
			Err:    outcome.Err,
		}, nil
	}

	verdict := classify.Default(outcome.ExitCode, o.session.Log())
	o.logger.Info("build_finished",
		"success", verdict.Success,
		"reason", verdict.Reason,
		"output_dir", req.OutputDir,
	)
	return BuildResult{
		Success:   verdict.Success,
		Reason:    verdict.Reason,
		OutputDir: req.OutputDir,
		Log:       o.session.Log(),
	}, nil
}

func (o *BuildOrchestrator) resolve(req command.BuildRequest) (engine.ResolvedEngine, string, error) {
	if !req.Platform.Valid() {
		return engine.ResolvedEngine{}, "", &ConfigurationError{Field: "platform", Msg: "unsupported platform"}
	}
	if !req.Configuration.Valid() {
		return engine.ResolvedEngine{}, "", &ConfigurationError{Field: "configuration", Msg: "unsupported configuration"}
	}
	if req.OutputDir == "" {
		return engine.ResolvedEngine{}, "", &ConfigurationError{Field: "output_dir", Msg: "output directory not set"}
	}

	eng, err := o.locator.Resolve(req.SourcePath, req.EngineBase)
	if err != nil {
		return engine.ResolvedEngine{}, "", err
	}
	uat, err := engine.UATScript(eng.InstallDir)
	if err != nil {
		return engine.ResolvedEngine{}, "", err
	}
	return eng, uat, nil
}

// clearOutputDir enforces the existing-directory conflict rule: nothing is
// deleted unless the caller explicitly confirms the overwrite.
func (o *BuildOrchestrator) clearOutputDir(dir string, opts BuildOptions) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if opts.ConfirmOverwrite == nil || !opts.ConfirmOverwrite(dir) {
		return &BuildExistsError{Path: dir}
	}
	o.logger.Info("output_dir_overwrite_confirmed", "dir", dir)
	return os.RemoveAll(dir)
}
