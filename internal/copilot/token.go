package copilot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// ErrNoToken is returned when no Copilot token can be found anywhere.
var ErrNoToken = errors.New("no copilot token available")

// appsConfig mirrors the apps.json file written by official GitHub Copilot
// clients.
type appsConfig struct {
	Tokens map[string]tokenInfo `json:"tokens"`
}

type tokenInfo struct {
	Token      string `json:"token"`
	ExpiresAt  int64  `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
	ProviderID string `json:"provider_id"`
}

// ResolveToken finds a Copilot bearer token. Order: the explicit value
// (from config), the COPILOT_API_KEY environment variable, then the local
// github-copilot apps.json shared with the official clients.
func ResolveToken(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if env := os.Getenv("COPILOT_API_KEY"); env != "" {
		return env, nil
	}

	return tokenFromAppsConfig()
}

func tokenFromAppsConfig() (string, error) {
	path, err := appsConfigPath()
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoToken, path)
	}

	var cfg appsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("parse copilot config: %w", err)
	}

	now := time.Now().Unix()

	for _, info := range cfg.Tokens {
		if info.Token == "" {
			continue
		}

		if info.ExpiresAt != 0 && info.ExpiresAt <= now {
			continue
		}

		return info.Token, nil
	}

	return "", ErrNoToken
}

// appsConfigPath returns the platform path of the GitHub Copilot client
// config file: %APPDATA%\GitHub Copilot\apps.json on Windows,
// ~/.config/github-copilot/apps.json elsewhere.
func appsConfigPath() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", ErrNoToken
		}

		return filepath.Join(appData, "GitHub Copilot", "apps.json"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}

	return filepath.Join(home, ".config", "github-copilot", "apps.json"), nil
}
