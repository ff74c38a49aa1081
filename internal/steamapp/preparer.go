// Package steamapp renders the SteamPipe app build manifest that steamcmd
// consumes. The manifest lives in a builder directory next to a BuildLogs
// subdirectory, and every path inside it is relative to that directory so
// the builder tree can be moved between machines.
package steamapp

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed app_build.vdf.tmpl
var manifestTemplate string

var manifestTmpl = template.Must(template.New("app_build").Parse(manifestTemplate))

const (
	manifestFileName = "app_build.vdf"
	logDirName       = "BuildLogs"
)

// Manifest describes one Steam app build.
type Manifest struct {
	// AppID is the numeric Steam application id, kept as a string since it
	// is only ever interpolated into the manifest.
	AppID       string
	Description string

	// BuilderDir is where the manifest and BuildLogs directory are written.
	BuilderDir string

	// ContentDir is the directory holding the build output to upload.
	ContentDir string

	// Depots maps depot id to the local directory backing that depot.
	Depots map[string]string
}

type depotEntry struct {
	ID   string
	Path string
}

type manifestData struct {
	AppID       string
	Description string
	ContentRoot string
	BuildOutput string
	Depots      []depotEntry
}

// Preparer writes app build manifests.
type Preparer struct {
	logger *slog.Logger
}

// NewPreparer returns a Preparer logging through the given logger.
func NewPreparer(logger *slog.Logger) *Preparer {
	return &Preparer{logger: logger}
}

// Prepare creates the builder directory and its BuildLogs subdirectory if
// needed, renders the manifest, and writes it to the builder directory,
// overwriting any previous manifest. The same Manifest always produces a
// byte-identical file. Returns the manifest path.
func (p *Preparer) Prepare(m Manifest) (string, error) {
	if m.BuilderDir == "" {
		return "", fmt.Errorf("prepare steam manifest: builder directory not set")
	}

	if err := os.MkdirAll(m.BuilderDir, 0o755); err != nil {
		return "", fmt.Errorf("create builder directory: %w", err)
	}
	logDir := filepath.Join(m.BuilderDir, logDirName)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return "", fmt.Errorf("create build log directory: %w", err)
	}

	contentRel, err := relativeTo(m.BuilderDir, m.ContentDir)
	if err != nil {
		return "", fmt.Errorf("relativize content root: %w", err)
	}
	logRel, err := relativeTo(m.BuilderDir, logDir)
	if err != nil {
		return "", fmt.Errorf("relativize log directory: %w", err)
	}

	data := manifestData{
		AppID:       m.AppID,
		Description: m.Description,
		ContentRoot: contentRel,
		BuildOutput: logRel,
		Depots:      make([]depotEntry, 0, len(m.Depots)),
	}
	for id, dir := range m.Depots {
		depotRel, err := relativeTo(m.BuilderDir, dir)
		if err != nil {
			return "", fmt.Errorf("relativize depot %s: %w", id, err)
		}
		data.Depots = append(data.Depots, depotEntry{ID: id, Path: depotRel})
	}
	// Map iteration order is random; sort so repeated renders are
	// byte-identical.
	sort.Slice(data.Depots, func(i, j int) bool {
		return data.Depots[i].ID < data.Depots[j].ID
	})

	var sb strings.Builder
	if err := manifestTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render manifest: %w", err)
	}

	path := filepath.Join(m.BuilderDir, manifestFileName)
	existed := false
	if _, err := os.Stat(path); err == nil {
		existed = true
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	if p.logger != nil {
		if existed {
			p.logger.Info("steam manifest updated", "path", path)
		} else {
			p.logger.Info("steam manifest written", "path", path)
		}
	}
	return path, nil
}

// relativeTo returns target relative to base with forward slashes, which
// steamcmd accepts on every platform.
func relativeTo(base, target string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(absBase, absTarget)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
