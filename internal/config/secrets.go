package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables carrying credentials. These never appear in the
// profile file and are redacted from logged command lines.
const (
	EnvSteamPassword = "STEAM_PASSWORD"
	EnvButlerAPIKey  = "BUTLER_API_KEY"
)

// Secrets holds resolved credential values for one invocation. They are
// passed by value into publish requests and not retained afterwards.
type Secrets struct {
	SteamPassword string
	ButlerAPIKey  string
}

// LoadSecrets resolves credentials from a .env file, when present, and
// the process environment. A missing .env file is not an error; variables
// already set in the environment take precedence over the file.
func LoadSecrets(envFile string) Secrets {
	if envFile != "" {
		// godotenv.Load never overrides variables that are already set.
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	return Secrets{
		SteamPassword: os.Getenv(EnvSteamPassword),
		ButlerAPIKey:  os.Getenv(EnvButlerAPIKey),
	}
}
