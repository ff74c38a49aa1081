//go:build !windows

package orchestrate

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// fakeTool writes an executable script that prints the given output and
// exits with the given code, standing in for butler or steamcmd.
func fakeTool(t *testing.T, name, output string, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\ncat <<'TOOLOUT'\n" + output + "\nTOOLOUT\nexit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func itchRequest(t *testing.T, butlerPath string) PublishRequest {
	t.Helper()
	content := filepath.Join(t.TempDir(), "build")
	if err := os.MkdirAll(content, 0o755); err != nil {
		t.Fatal(err)
	}
	return PublishRequest{
		Store:      StoreItch,
		ContentDir: content,
		BuildID:    "1.2.0",
		Itch: ItchTarget{
			ButlerPath: butlerPath,
			UserGame:   "studio/mygame",
			Channel:    "windows-beta",
			APIKey:     "key-123",
		},
	}
}

func steamRequest(t *testing.T, steamcmdPath string) PublishRequest {
	t.Helper()
	root := t.TempDir()
	content := filepath.Join(root, "build")
	if err := os.MkdirAll(content, 0o755); err != nil {
		t.Fatal(err)
	}
	return PublishRequest{
		Store:      StoreSteam,
		ContentDir: content,
		BuildID:    "1.2.0",
		Steam: SteamTarget{
			SteamcmdPath: steamcmdPath,
			Username:     "builder",
			Password:     "hunter2",
			AppID:        "480",
			Description:  "MyGame 1.2.0",
			BuilderDir:   filepath.Join(root, "steam"),
			Depots:       map[string]string{"481": content},
		},
	}
}

func TestPublishItchSuccess(t *testing.T) {
	butler := fakeTool(t, "butler", "Pushing 120 MiB\nTasks ended.", 0)
	o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})

	res, err := o.Run(t.Context(), itchRequest(t, butler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v, want success", res)
	}
	if !strings.Contains(res.Log, "Tasks ended.") {
		t.Errorf("log missing tool output: %q", res.Log)
	}
}

func TestPublishItchNonZeroExitFails(t *testing.T) {
	butler := fakeTool(t, "butler", "Pushing 120 MiB\nTasks ended.", 1)
	o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})

	res, err := o.Run(t.Context(), itchRequest(t, butler))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Errorf("result = %+v, want failure on non-zero exit", res)
	}
}

func TestPublishSteamSuccessWritesManifest(t *testing.T) {
	steamcmd := fakeTool(t, "steamcmd",
		"Logging in user 'builder' to Steam Public...OK\nSuccess! App build successful", 0)
	o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})

	req := steamRequest(t, steamcmd)
	res, err := o.Run(t.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Errorf("result = %+v, want success", res)
	}
	if _, statErr := os.Stat(filepath.Join(req.Steam.BuilderDir, "app_build.vdf")); statErr != nil {
		t.Errorf("manifest not written: %v", statErr)
	}
}

func TestPublishSteamErrorInLogFails(t *testing.T) {
	steamcmd := fakeTool(t, "steamcmd",
		"Logging in user 'builder' to Steam Public...OK\nSuccess! App build successful\nERROR: disk full", 0)
	o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})

	res, err := o.Run(t.Context(), steamRequest(t, steamcmd))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Errorf("result = %+v, want failure when tool reports an error", res)
	}
}

func TestPublishValidationFailsFast(t *testing.T) {
	butler := fakeTool(t, "butler", "Tasks ended.", 0)

	tests := []struct {
		name   string
		mutate func(*PublishRequest)
	}{
		{"missing api key", func(r *PublishRequest) { r.Itch.APIKey = "" }},
		{"missing channel", func(r *PublishRequest) { r.Itch.Channel = "" }},
		{"missing user game", func(r *PublishRequest) { r.Itch.UserGame = "" }},
		{"missing butler", func(r *PublishRequest) { r.Itch.ButlerPath = "/no/such/butler" }},
		{"missing content dir", func(r *PublishRequest) { r.ContentDir = "/no/such/dir" }},
		{"missing build id", func(r *PublishRequest) { r.BuildID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})
			req := itchRequest(t, butler)
			tt.mutate(&req)

			_, err := o.Run(t.Context(), req)
			var confErr *ConfigurationError
			if !errors.As(err, &confErr) {
				t.Fatalf("want ConfigurationError, got %v", err)
			}
			if o.Session().Log() != "" {
				t.Error("no process may spawn on a validation failure")
			}
		})
	}
}

func TestPublishUnknownStore(t *testing.T) {
	o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})

	_, err := o.Run(t.Context(), PublishRequest{Store: "gog"})
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("want ConfigurationError, got %v", err)
	}
}

func TestPublishCommandInjectsCredentialsViaEnv(t *testing.T) {
	butler := fakeTool(t, "butler", "Tasks ended.", 0)
	o := NewPublishOrchestrator(PublishConfig{Logger: testLogger()})

	req := itchRequest(t, butler)
	cmd, err := o.Command(req)
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Env["BUTLER_API_KEY"] != "key-123" {
		t.Error("API key must travel through the environment")
	}
	for _, arg := range cmd.Args {
		if strings.Contains(arg, "key-123") {
			t.Error("API key must not appear in argv")
		}
	}
	if !strings.Contains(cmd.Redacted(), "***") {
		t.Errorf("redacted command must mask the key: %s", cmd.Redacted())
	}
	if strings.Contains(cmd.Redacted(), "key-123") {
		t.Errorf("redacted command leaks the key: %s", cmd.Redacted())
	}
}
