package command

import "path/filepath"

// SteamUpload builds the steamcmd invocation that logs in and runs an app
// build from a previously generated descriptor file.
//
// steamcmd has no environment-variable form for credentials, so the
// password travels in argv (empty string when cached credentials are
// expected) and is registered as a secret so logged forms mask it. The
// working directory is the executable's own directory, matching how the
// tool expects to find its local state.
func SteamUpload(steamcmdPath, username, password, descriptorPath string) External {
	cmd := External{
		Path: steamcmdPath,
		Args: []string{
			"+login", username, password,
			"+run_app_build", descriptorPath,
			"+quit",
		},
		Dir: filepath.Dir(steamcmdPath),
	}
	if password != "" {
		cmd.Secrets = []string{password}
	}
	return cmd
}
