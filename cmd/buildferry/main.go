// buildferry drives Unreal Engine builds and store uploads from the
// command line: it resolves the engine for a project, runs UAT to cook
// and package it, and pushes the result to Steam or itch.io.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/buildferry/buildferry/internal/command"
	"github.com/buildferry/buildferry/internal/config"
	"github.com/buildferry/buildferry/internal/display"
	"github.com/buildferry/buildferry/internal/logging"
	"github.com/buildferry/buildferry/internal/metrics"
	"github.com/buildferry/buildferry/internal/orchestrate"
	"github.com/buildferry/buildferry/internal/preflight"
	"github.com/buildferry/buildferry/internal/session"
	"github.com/buildferry/buildferry/internal/stats"
)

const version = "0.3.0"

var CLI struct {
	Profile string `short:"p" help:"Profile file path" default:"buildferry.yaml"`
	EnvFile string `help:"Env file holding credentials (STEAM_PASSWORD, BUTLER_API_KEY)" default:""`
	Verbose bool   `short:"v" help:"Mirror all tool output into the structured log"`

	Build struct {
		Overwrite bool `help:"Delete an existing output directory without asking"`
		PrintCmd  bool `help:"Print the UAT command line and exit without running it"`
	} `cmd:"" help:"Cook and package the configured project"`

	Publish struct {
		Store    string `arg:"" enum:"steam,itch" help:"Target store (steam or itch)"`
		BuildID  string `help:"Version identifier for this upload, e.g. 1.2.0" required:""`
		PrintCmd bool   `help:"Print the upload command line and exit without running it"`
	} `cmd:"" help:"Upload a packaged build to a store"`

	Preflight struct{} `cmd:"" help:"Check that the configured tools are present"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("buildferry"),
		kong.Description("Unreal Engine build and store publish driver"),
	)

	cfg, err := config.Load(CLI.Profile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if CLI.Verbose {
		cfg.Verbose = true
	}

	logger := logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exitCode int
	switch kctx.Command() {
	case "build":
		exitCode = runBuild(ctx, cfg, logger)
	case "publish <store>":
		exitCode = runPublish(ctx, cfg, logger)
	case "preflight":
		exitCode = runPreflight(cfg)
	}
	os.Exit(exitCode)
}

func runBuild(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid_profile", "error", err)
		return 1
	}

	rt := startRuntime(cfg, metrics.KindBuild, "uat", logger)
	defer rt.shutdown()

	orch := orchestrate.NewBuildOrchestrator(orchestrate.BuildConfig{
		Logger:    logger,
		Callbacks: rt.callbacks(),
	})

	req := command.BuildRequest{
		SourcePath:     cfg.Source,
		EngineBase:     cfg.EngineBase,
		Platform:       command.Platform(cfg.Build.Platform),
		Configuration:  command.Configuration(cfg.Build.Configuration),
		Clean:          cfg.Build.Clean,
		OutputDir:      cfg.Build.OutputDir,
		StoreOptimized: cfg.Build.StoreOptimized,
	}

	if CLI.Build.PrintCmd {
		cmd, err := orch.Command(req)
		if err != nil {
			logger.Error("build_resolve_failed", "error", err)
			return 1
		}
		fmt.Println(cmd.Redacted())
		return 0
	}

	res, err := orch.Run(ctx, req, orchestrate.BuildOptions{
		ConfirmOverwrite: confirmOverwrite,
	})
	if err != nil {
		logger.Error("build_failed", "error", err)
		return 1
	}

	rt.finish(res.Success, stats.SummaryConfig{
		Kind:     metrics.KindBuild,
		Target:   cfg.Source,
		Success:  res.Success,
		Reason:   res.Reason,
		ExitCode: orch.Session().Outcome().ExitCode,
	})
	if !res.Success {
		return 1
	}
	return 0
}

func runPublish(ctx context.Context, cfg *config.Config, logger *slog.Logger) int {
	store := CLI.Publish.Store
	if err := config.Validate(cfg, store); err != nil {
		logger.Error("invalid_profile", "error", err)
		return 1
	}
	secrets := config.LoadSecrets(CLI.EnvFile)

	rt := startRuntime(cfg, metrics.KindPublish, store, logger)
	defer rt.shutdown()

	orch := orchestrate.NewPublishOrchestrator(orchestrate.PublishConfig{
		Logger:    logger,
		Callbacks: rt.callbacks(),
	})

	req := orchestrate.PublishRequest{
		Store:      orchestrate.Store(store),
		ContentDir: cfg.Build.OutputDir,
		BuildID:    CLI.Publish.BuildID,
		Steam: orchestrate.SteamTarget{
			SteamcmdPath: cfg.Steam.SteamcmdPath,
			Username:     cfg.Steam.Username,
			Password:     secrets.SteamPassword,
			AppID:        cfg.Steam.AppID,
			Description:  cfg.Steam.Description,
			BuilderDir:   cfg.Steam.BuilderDir,
			Depots:       cfg.Steam.Depots,
		},
		Itch: orchestrate.ItchTarget{
			ButlerPath: cfg.Itch.ButlerPath,
			UserGame:   cfg.Itch.UserGame,
			Channel:    cfg.Itch.Channel,
			APIKey:     secrets.ButlerAPIKey,
		},
	}

	if CLI.Publish.PrintCmd {
		cmd, err := orch.Command(req)
		if err != nil {
			logger.Error("publish_resolve_failed", "error", err)
			return 1
		}
		fmt.Println(cmd.Redacted())
		return 0
	}

	res, err := orch.Run(ctx, req)
	if err != nil {
		logger.Error("publish_failed", "error", err)
		return 1
	}

	rt.finish(res.Success, stats.SummaryConfig{
		Kind:     metrics.KindPublish,
		Target:   store + ":" + CLI.Publish.BuildID,
		Success:  res.Success,
		Reason:   res.Reason,
		ExitCode: orch.Session().Outcome().ExitCode,
	})
	if !res.Success {
		return 1
	}
	return 0
}

func runPreflight(cfg *config.Config) int {
	result := preflight.RunAll(preflight.Options{
		EngineBase:   cfg.EngineBase,
		SteamcmdPath: cfg.Steam.SteamcmdPath,
		ButlerPath:   cfg.Itch.ButlerPath,
		OutputDir:    cfg.Build.OutputDir,
	})
	preflight.PrintResults(result)
	if !result.Passed {
		return 1
	}
	return 0
}

// confirmOverwrite asks on the terminal before an existing output
// directory is deleted, honoring the --overwrite flag.
func confirmOverwrite(dir string) bool {
	if CLI.Build.Overwrite {
		return true
	}
	fmt.Printf("Output directory %s already exists. Delete and rebuild? [y/N] ", dir)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y" || answer == "yes"
}

// runtime bundles the pieces every run wires the same way: the metrics
// collector and optional server, live colorized output, the recent-line
// buffer for the exit summary, and chunk statistics.
type runtime struct {
	collector *metrics.Collector
	server    *metrics.Server
	writer    *display.Writer
	handler   *logging.OutputHandler
	runStats  *stats.RunStats
	kind      string
}

func startRuntime(cfg *config.Config, kind, tool string, logger *slog.Logger) *runtime {
	registry := prometheus.NewRegistry()
	rt := &runtime{
		collector: metrics.NewCollectorWithRegistry(
			metrics.CollectorConfig{Version: version},
			registry,
		),
		writer:   display.NewWriter(os.Stdout),
		handler:  logging.NewOutputHandler(tool, logger, cfg.Verbose),
		runStats: stats.NewRunStats(),
		kind:     kind,
	}

	if cfg.MetricsAddr != "" {
		rt.server = metrics.NewServer(cfg.MetricsAddr, registry, logger)
		if err := rt.server.Start(); err != nil {
			logger.Error("metrics_server_failed", "error", err)
			rt.server = nil
		}
	}

	return rt
}

func (rt *runtime) callbacks() session.Callbacks {
	return session.Callbacks{
		OnStateChange: func(_, newState session.State) {
			if newState == session.StateRunning {
				rt.collector.RunStarted(rt.kind)
			}
		},
		OnOutput: func(chunk string) {
			rt.runStats.OnChunk(len(chunk))
			rt.collector.AddOutputBytes(rt.kind, len(chunk))
			rt.writer.WriteChunk(chunk)
			rt.handler.HandleChunk(chunk)
		},
	}
}

func (rt *runtime) finish(success bool, summary stats.SummaryConfig) {
	rt.writer.Flush()
	rt.runStats.Finish()

	result := metrics.ResultFailure
	if success {
		result = metrics.ResultSuccess
	}
	rt.collector.RunFinished(rt.kind, result)

	summary.ErrorCounts = rt.handler.CountErrors()
	if rt.server != nil {
		summary.MetricsAddr = rt.server.Addr()
	}
	fmt.Print(stats.FormatExitSummary(rt.runStats, summary))
}

func (rt *runtime) shutdown() {
	if rt.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rt.server.Shutdown(ctx)
}
