package command

import (
	"fmt"
	"path/filepath"
)

// ButlerPush builds the butler invocation pushing contentDir to an itch.io
// channel. The API key goes through the environment (BUTLER_API_KEY), never
// argv. BUTLER_NO_TTY keeps butler's output machine-readable for the
// classifier. The content directory is made absolute so butler's cwd does
// not matter.
func ButlerPush(butlerPath, contentDir, userGame, channel, version, apiKey string) (External, error) {
	absContent, err := filepath.Abs(contentDir)
	if err != nil {
		return External{}, fmt.Errorf("resolving content dir %s: %w", contentDir, err)
	}

	return External{
		Path: butlerPath,
		Args: []string{
			"push",
			absContent,
			fmt.Sprintf("%s:%s", userGame, channel),
			"--userversion", version,
		},
		Env: map[string]string{
			"BUTLER_API_KEY": apiKey,
			"BUTLER_NO_TTY":  "1",
		},
		Secrets: []string{apiKey},
	}, nil
}
