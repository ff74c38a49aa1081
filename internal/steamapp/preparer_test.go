package steamapp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest(t *testing.T) Manifest {
	t.Helper()
	root := t.TempDir()
	content := filepath.Join(root, "builds", "MyGame-1.2.0")
	require.NoError(t, os.MkdirAll(content, 0o755))
	return Manifest{
		AppID:       "480",
		Description: "MyGame 1.2.0",
		BuilderDir:  filepath.Join(root, "steam"),
		ContentDir:  content,
		Depots: map[string]string{
			"481": content,
		},
	}
}

func TestPrepareWritesManifest(t *testing.T) {
	m := testManifest(t)
	p := NewPreparer(nil)

	path, err := p.Prepare(m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.BuilderDir, "app_build.vdf"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.Contains(t, text, `"AppID" "480"`)
	assert.Contains(t, text, `"Desc" "MyGame 1.2.0"`)
	assert.Contains(t, text, `"BuildOutput" "BuildLogs"`)
	assert.Contains(t, text, `"481"`)
	assert.NotContains(t, text, m.BuilderDir, "manifest must not embed absolute paths")

	assert.DirExists(t, filepath.Join(m.BuilderDir, "BuildLogs"))
}

func TestPrepareRelativizesContentRoot(t *testing.T) {
	m := testManifest(t)
	p := NewPreparer(nil)

	path, err := p.Prepare(m)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(content), `"ContentRoot" "../builds/MyGame-1.2.0"`)
}

func TestPrepareIsIdempotent(t *testing.T) {
	m := testManifest(t)
	m.Depots["482"] = filepath.Join(filepath.Dir(m.ContentDir), "dlc")
	m.Depots["479"] = filepath.Join(filepath.Dir(m.ContentDir), "soundtrack")
	p := NewPreparer(nil)

	path1, err := p.Prepare(m)
	require.NoError(t, err)
	first, err := os.ReadFile(path1)
	require.NoError(t, err)

	path2, err := p.Prepare(m)
	require.NoError(t, err)
	second, err := os.ReadFile(path2)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.Equal(t, first, second, "re-render of an unchanged manifest must be byte-identical")
}

func TestPrepareSortsDepots(t *testing.T) {
	m := testManifest(t)
	m.Depots = map[string]string{
		"483": m.ContentDir,
		"481": m.ContentDir,
		"482": m.ContentDir,
	}
	p := NewPreparer(nil)

	path, err := p.Prepare(m)
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	i481 := strings.Index(text, `"481"`)
	i482 := strings.Index(text, `"482"`)
	i483 := strings.Index(text, `"483"`)
	require.True(t, i481 >= 0 && i482 >= 0 && i483 >= 0)
	assert.Less(t, i481, i482)
	assert.Less(t, i482, i483)
}

func TestPrepareRequiresBuilderDir(t *testing.T) {
	p := NewPreparer(nil)
	_, err := p.Prepare(Manifest{AppID: "480"})
	assert.Error(t, err)
}
