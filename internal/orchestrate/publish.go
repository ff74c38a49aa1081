package orchestrate

import (
	"context"
	"log/slog"
	"os"

	"github.com/buildferry/buildferry/internal/classify"
	"github.com/buildferry/buildferry/internal/command"
	"github.com/buildferry/buildferry/internal/session"
	"github.com/buildferry/buildferry/internal/steamapp"
)

// Store identifies a publish target.
type Store string

const (
	StoreSteam Store = "steam"
	StoreItch  Store = "itch"
)

// SteamTarget holds the Steam-specific publish fields.
type SteamTarget struct {
	SteamcmdPath string
	Username     string
	Password     string
	AppID        string
	Description  string
	BuilderDir   string
	Depots       map[string]string
}

// ItchTarget holds the itch.io-specific publish fields.
type ItchTarget struct {
	ButlerPath string
	// UserGame is the "user/game" identifier on itch.io.
	UserGame string
	Channel  string
	APIKey   string
}

// PublishRequest describes one upload of a finished build to a store.
// Credential fields are passed by value and not retained after the run.
type PublishRequest struct {
	Store      Store
	ContentDir string
	// BuildID is the user-facing version for this upload, e.g. "1.2.0".
	BuildID string

	Steam SteamTarget
	Itch  ItchTarget
}

// PublishResult is the outcome of one publish run.
type PublishResult struct {
	Success bool
	Reason  string
	Log     string

	// Err is set when the process failed before producing a classifiable
	// exit.
	Err error
}

// storeStrategy bundles everything that varies per store. Adding a store
// means adding one table row.
type storeStrategy struct {
	validate func(PublishRequest) error
	// prepare renders any descriptor artifact and returns its path, or ""
	// when the store needs none.
	prepare  func(o *PublishOrchestrator, req PublishRequest) (string, error)
	command  func(req PublishRequest, descriptorPath string) (command.External, error)
	classify classify.Func
}

var storeStrategies = map[Store]storeStrategy{
	StoreSteam: {
		validate: validateSteam,
		prepare: func(o *PublishOrchestrator, req PublishRequest) (string, error) {
			return o.preparer.Prepare(steamapp.Manifest{
				AppID:       req.Steam.AppID,
				Description: req.Steam.Description,
				BuilderDir:  req.Steam.BuilderDir,
				ContentDir:  req.ContentDir,
				Depots:      req.Steam.Depots,
			})
		},
		command: func(req PublishRequest, descriptorPath string) (command.External, error) {
			return command.SteamUpload(req.Steam.SteamcmdPath, req.Steam.Username, req.Steam.Password, descriptorPath), nil
		},
		classify: classify.Steam,
	},
	StoreItch: {
		validate: validateItch,
		prepare:  func(*PublishOrchestrator, PublishRequest) (string, error) { return "", nil },
		command: func(req PublishRequest, _ string) (command.External, error) {
			return command.ButlerPush(req.Itch.ButlerPath, req.ContentDir, req.Itch.UserGame, req.Itch.Channel, req.BuildID, req.Itch.APIKey)
		},
		classify: classify.Itch,
	},
}

func validateSteam(req PublishRequest) error {
	switch {
	case req.Steam.SteamcmdPath == "":
		return &ConfigurationError{Field: "steam.steamcmd_path", Msg: "steamcmd location not configured"}
	case req.Steam.Username == "":
		return &ConfigurationError{Field: "steam.username", Msg: "Steam username not configured"}
	case req.Steam.AppID == "":
		return &ConfigurationError{Field: "steam.app_id", Msg: "Steam app id not configured"}
	case req.Steam.BuilderDir == "":
		return &ConfigurationError{Field: "steam.builder_dir", Msg: "builder directory not configured"}
	case len(req.Steam.Depots) == 0:
		return &ConfigurationError{Field: "steam.depots", Msg: "no depot mappings configured"}
	}
	if _, err := os.Stat(req.Steam.SteamcmdPath); err != nil {
		return &ConfigurationError{Field: "steam.steamcmd_path", Msg: "steamcmd not found at " + req.Steam.SteamcmdPath}
	}
	return validateContent(req)
}

func validateItch(req PublishRequest) error {
	switch {
	case req.Itch.ButlerPath == "":
		return &ConfigurationError{Field: "itch.butler_path", Msg: "butler location not configured"}
	case req.Itch.UserGame == "":
		return &ConfigurationError{Field: "itch.user_game", Msg: "itch.io user/game id not configured"}
	case req.Itch.Channel == "":
		return &ConfigurationError{Field: "itch.channel", Msg: "itch.io channel not configured"}
	case req.Itch.APIKey == "":
		return &ConfigurationError{Field: "itch.api_key", Msg: "itch.io API key not configured"}
	}
	if _, err := os.Stat(req.Itch.ButlerPath); err != nil {
		return &ConfigurationError{Field: "itch.butler_path", Msg: "butler not found at " + req.Itch.ButlerPath}
	}
	return validateContent(req)
}

func validateContent(req PublishRequest) error {
	if req.ContentDir == "" {
		return &ConfigurationError{Field: "content_dir", Msg: "content directory not set"}
	}
	if info, err := os.Stat(req.ContentDir); err != nil || !info.IsDir() {
		return &ConfigurationError{Field: "content_dir", Msg: "content directory does not exist: " + req.ContentDir}
	}
	if req.BuildID == "" {
		return &ConfigurationError{Field: "build_id", Msg: "build version not set"}
	}
	return nil
}

// PublishConfig wires a PublishOrchestrator.
type PublishConfig struct {
	Logger    *slog.Logger
	Callbacks session.Callbacks
}

// PublishOrchestrator drives one publish target. One orchestrator owns one
// session; publishing to several stores concurrently uses one orchestrator
// per store.
type PublishOrchestrator struct {
	logger   *slog.Logger
	preparer *steamapp.Preparer
	session  *session.Session
}

// NewPublishOrchestrator returns a publish orchestrator logging through
// logger and forwarding session events to the given callbacks.
func NewPublishOrchestrator(cfg PublishConfig) *PublishOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishOrchestrator{
		logger:   logger,
		preparer: steamapp.NewPreparer(logger),
		session: session.New(session.Config{
			Name:      "publish",
			Logger:    logger,
			Callbacks: cfg.Callbacks,
		}),
	}
}

// Session exposes the underlying process session.
func (o *PublishOrchestrator) Session() *session.Session { return o.session }

// Cancel forwards to the running session.
func (o *PublishOrchestrator) Cancel() session.CancelResult { return o.session.Cancel() }

// Command validates the request and returns the upload command without
// running it. Used for dry-run display. For Steam this writes the
// manifest, since the command references it by path.
func (o *PublishOrchestrator) Command(req PublishRequest) (command.External, error) {
	strat, err := o.strategyFor(req)
	if err != nil {
		return command.External{}, err
	}
	descriptor, err := strat.prepare(o, req)
	if err != nil {
		return command.External{}, err
	}
	return strat.command(req, descriptor)
}

// Run validates the request, prepares any descriptor artifact, and drives
// the store uploader to completion. Validation and preparation failures
// return an error before any process spawns; an upload that ran but did
// not convince the classifier comes back as an unsuccessful result.
func (o *PublishOrchestrator) Run(ctx context.Context, req PublishRequest) (PublishResult, error) {
	if o.session.State().IsActive() {
		return PublishResult{}, ErrRunInProgress
	}

	strat, err := o.strategyFor(req)
	if err != nil {
		return PublishResult{}, err
	}

	descriptor, err := strat.prepare(o, req)
	if err != nil {
		return PublishResult{}, err
	}

	cmd, err := strat.command(req, descriptor)
	if err != nil {
		return PublishResult{}, err
	}

	o.logger.Info("publish_starting",
		"store", string(req.Store),
		"content_dir", req.ContentDir,
		"build_id", req.BuildID,
		"command", cmd.Redacted(),
	)

	outcome, err := o.session.Run(ctx, cmd)
	if err != nil {
		return PublishResult{Log: o.session.Log(), Err: err}, nil
	}
	if o.session.State() == session.StateCancelled {
		return PublishResult{Reason: "cancelled", Log: o.session.Log()}, nil
	}
	if outcome.Status == session.ExitCrash {
		return PublishResult{
			Reason: outcome.Err.Error(),
			Log:    o.session.Log(),
			Err:    outcome.Err,
		}, nil
	}

	verdict := strat.classify(outcome.ExitCode, o.session.Log())
	o.logger.Info("publish_finished",
		"store", string(req.Store),
		"success", verdict.Success,
		"reason", verdict.Reason,
	)
	return PublishResult{
		Success: verdict.Success,
		Reason:  verdict.Reason,
		Log:     o.session.Log(),
	}, nil
}

func (o *PublishOrchestrator) strategyFor(req PublishRequest) (storeStrategy, error) {
	strat, ok := storeStrategies[req.Store]
	if !ok {
		return storeStrategy{}, &ConfigurationError{Field: "store", Msg: "unknown store " + string(req.Store)}
	}
	if err := strat.validate(req); err != nil {
		return storeStrategy{}, err
	}
	return strat, nil
}
