// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
//
// Supported key files: openai-api-key, anthropic-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Key file names.
const (
	OpenAIKey    = "openai-api-key"
	AnthropicKey = "anthropic-api-key"
)

// envFallback maps key file names to the environment variable consulted
// when the file is absent.
var envFallback = map[string]string{
	OpenAIKey:    "OPENAI_API_KEY",
	AnthropicKey: "ANTHROPIC_API_KEY",
}

// providerKeys maps an extraction provider to its key file.
var providerKeys = map[string]string{
	"openai":    OpenAIKey,
	"anthropic": AnthropicKey,
	"claude":    AnthropicKey,
}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// APIKey returns the key for provider, preferring the loaded secret files
// over the environment.
func APIKey(secrets map[string]string, provider string) (string, error) {
	name, ok := providerKeys[strings.ToLower(provider)]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", provider)
	}
	if v := secrets[name]; v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(envFallback[name])); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no API key for %s: add %s to the secrets directory or set %s", provider, name, envFallback[name])
}
