//go:build !windows

package orchestrate

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/buildferry/buildferry/internal/command"
	"github.com/buildferry/buildferry/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildFixture lays out a source tree with one project file and an engine
// installation with the tool scripts in place.
func buildFixture(t *testing.T, version string) (source, engineBase string) {
	t.Helper()
	root := t.TempDir()

	source = filepath.Join(root, "MyGame")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatal(err)
	}
	project := []byte(`{"FileVersion": 3, "EngineAssociation": "` + version + `"}`)
	if err := os.WriteFile(filepath.Join(source, "MyGame.uproject"), project, 0o644); err != nil {
		t.Fatal(err)
	}

	engineBase = filepath.Join(root, "Epic")
	scripts := filepath.Join(engineBase, "UE_"+version, "Engine", "Build", "BatchFiles")
	if err := os.MkdirAll(scripts, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"RunUAT.sh", "RunUAT.bat"} {
		if err := os.WriteFile(filepath.Join(scripts, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return source, engineBase
}

func TestCommandFullShape(t *testing.T) {
	source, engineBase := buildFixture(t, "5.5")
	outputDir := filepath.Join(t.TempDir(), "out")

	o := NewBuildOrchestrator(BuildConfig{Logger: testLogger()})
	cmd, err := o.Command(command.BuildRequest{
		SourcePath:    source,
		EngineBase:    engineBase,
		Platform:      command.PlatformWin64,
		Configuration: command.ConfigShipping,
		OutputDir:     outputDir,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	project := filepath.Join(source, "MyGame.uproject")
	want := []string{
		"BuildCookRun",
		`-project="` + project + `"`,
		"-noP4",
		"-platform=Win64",
		"-clientconfig=Shipping",
		"-build",
		"-cook",
		"-stage",
		"-pak",
		"-prereqs",
		"-archive",
		`-archivedirectory="` + outputDir + `"`,
	}
	if diff := cmp.Diff(want, cmd.Args); diff != "" {
		t.Errorf("argument mismatch (-want +got):\n%s", diff)
	}

	uat, err := engine.UATScript(filepath.Join(engineBase, "UE_5.5"))
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Path != uat {
		t.Errorf("executable = %q, want %q", cmd.Path, uat)
	}
}

func TestRunMissingEngineFailsBeforeSpawn(t *testing.T) {
	source, engineBase := buildFixture(t, "5.5")
	// The project asks for 5.6, which is not installed.
	project := []byte(`{"EngineAssociation": "5.6"}`)
	if err := os.WriteFile(filepath.Join(source, "MyGame.uproject"), project, 0o644); err != nil {
		t.Fatal(err)
	}

	o := NewBuildOrchestrator(BuildConfig{Logger: testLogger()})
	_, err := o.Command(command.BuildRequest{
		SourcePath:    source,
		EngineBase:    engineBase,
		Platform:      command.PlatformWin64,
		Configuration: command.ConfigShipping,
		OutputDir:     filepath.Join(t.TempDir(), "out"),
	})

	var notInstalled *engine.NotInstalledError
	if !errors.As(err, &notInstalled) {
		t.Fatalf("want NotInstalledError, got %v", err)
	}
	if o.Session().Log() != "" {
		t.Error("no process may spawn when the engine is missing")
	}
}

func TestRunRefusesExistingOutputDir(t *testing.T) {
	source, engineBase := buildFixture(t, "5.5")
	outputDir := t.TempDir() // already exists

	o := NewBuildOrchestrator(BuildConfig{Logger: testLogger()})
	_, err := o.Run(t.Context(), command.BuildRequest{
		SourcePath:    source,
		EngineBase:    engineBase,
		Platform:      command.PlatformWin64,
		Configuration: command.ConfigShipping,
		OutputDir:     outputDir,
	}, BuildOptions{})

	var exists *BuildExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("want BuildExistsError, got %v", err)
	}
	if exists.Path != outputDir {
		t.Errorf("conflict path = %q, want %q", exists.Path, outputDir)
	}
	if _, statErr := os.Stat(outputDir); statErr != nil {
		t.Error("unconfirmed conflict must not delete the directory")
	}
}

func TestRunOverwriteConfirmedRemovesDir(t *testing.T) {
	source, engineBase := buildFixture(t, "5.5")
	outputDir := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(filepath.Join(outputDir, "stale"), 0o755); err != nil {
		t.Fatal(err)
	}

	var asked string
	o := NewBuildOrchestrator(BuildConfig{Logger: testLogger()})
	res, err := o.Run(t.Context(), command.BuildRequest{
		SourcePath:    source,
		EngineBase:    engineBase,
		Platform:      command.PlatformWin64,
		Configuration: command.ConfigShipping,
		OutputDir:     outputDir,
	}, BuildOptions{
		ConfirmOverwrite: func(dir string) bool {
			asked = dir
			return true
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asked != outputDir {
		t.Errorf("confirmation asked for %q, want %q", asked, outputDir)
	}
	// The stub UAT script exits 0, so the run itself succeeds.
	if !res.Success {
		t.Errorf("result = %+v, want success", res)
	}
	if _, statErr := os.Stat(filepath.Join(outputDir, "stale")); !os.IsNotExist(statErr) {
		t.Error("stale output must be removed after confirmation")
	}
}

func TestRunValidatesRequest(t *testing.T) {
	o := NewBuildOrchestrator(BuildConfig{Logger: testLogger()})

	tests := []struct {
		name string
		req  command.BuildRequest
	}{
		{
			name: "bad platform",
			req: command.BuildRequest{
				SourcePath:    t.TempDir(),
				EngineBase:    t.TempDir(),
				Platform:      "Amiga",
				Configuration: command.ConfigShipping,
				OutputDir:     "out",
			},
		},
		{
			name: "bad configuration",
			req: command.BuildRequest{
				SourcePath:    t.TempDir(),
				EngineBase:    t.TempDir(),
				Platform:      command.PlatformWin64,
				Configuration: "Debugish",
				OutputDir:     "out",
			},
		},
		{
			name: "no output dir",
			req: command.BuildRequest{
				SourcePath:    t.TempDir(),
				EngineBase:    t.TempDir(),
				Platform:      command.PlatformWin64,
				Configuration: command.ConfigShipping,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Run(t.Context(), tt.req, BuildOptions{})
			var confErr *ConfigurationError
			if !errors.As(err, &confErr) {
				t.Errorf("want ConfigurationError, got %v", err)
			}
		})
	}
}
