package config

import (
	"errors"
	"fmt"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the profile for errors and inconsistencies. Returns nil
// if valid, or an error joining every problem found. Store-specific
// sections are only checked when requested, since a build-only run does
// not need publish settings.
func Validate(cfg *Config, stores ...string) error {
	var errs []error

	if cfg.Source == "" {
		errs = append(errs, ValidationError{
			Field:   "source",
			Message: "project source path is required",
		})
	}
	if cfg.EngineBase == "" {
		errs = append(errs, ValidationError{
			Field:   "engine_base",
			Message: "engine base installation path is required",
		})
	}

	validPlatforms := map[string]bool{"Win64": true, "Win32": true, "Mac": true}
	if !validPlatforms[cfg.Build.Platform] {
		errs = append(errs, ValidationError{
			Field:   "build.platform",
			Message: fmt.Sprintf("must be one of: Win64, Win32, Mac (got %q)", cfg.Build.Platform),
		})
	}

	validConfigurations := map[string]bool{"Development": true, "Shipping": true}
	if !validConfigurations[cfg.Build.Configuration] {
		errs = append(errs, ValidationError{
			Field:   "build.configuration",
			Message: fmt.Sprintf("must be 'Development' or 'Shipping' (got %q)", cfg.Build.Configuration),
		})
	}

	if cfg.Build.OutputDir == "" {
		errs = append(errs, ValidationError{
			Field:   "build.output_dir",
			Message: "output directory is required",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	for _, store := range stores {
		switch store {
		case "steam":
			errs = append(errs, validateSteamProfile(&cfg.Steam)...)
		case "itch":
			errs = append(errs, validateItchProfile(&cfg.Itch)...)
		default:
			errs = append(errs, ValidationError{
				Field:   "store",
				Message: fmt.Sprintf("unknown store %q", store),
			})
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateSteamProfile(p *SteamProfile) []error {
	var errs []error
	if p.SteamcmdPath == "" {
		errs = append(errs, ValidationError{Field: "steam.steamcmd_path", Message: "steamcmd path is required"})
	}
	if p.Username == "" {
		errs = append(errs, ValidationError{Field: "steam.username", Message: "username is required"})
	}
	if p.AppID == "" {
		errs = append(errs, ValidationError{Field: "steam.app_id", Message: "app id is required"})
	}
	if p.BuilderDir == "" {
		errs = append(errs, ValidationError{Field: "steam.builder_dir", Message: "builder directory is required"})
	}
	if len(p.Depots) == 0 {
		errs = append(errs, ValidationError{Field: "steam.depots", Message: "at least one depot mapping is required"})
	}
	return errs
}

func validateItchProfile(p *ItchProfile) []error {
	var errs []error
	if p.ButlerPath == "" {
		errs = append(errs, ValidationError{Field: "itch.butler_path", Message: "butler path is required"})
	}
	if p.UserGame == "" {
		errs = append(errs, ValidationError{Field: "itch.user_game", Message: "user/game id is required"})
	}
	if p.Channel == "" {
		errs = append(errs, ValidationError{Field: "itch.channel", Message: "channel name is required"})
	}
	return errs
}
