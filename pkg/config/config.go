// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads layered settings for the roles tooling.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment overrides (ROLES_STORAGE_PATH -> storage.path).
const EnvPrefix = "ROLES_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LLM       LLMConfig       `koanf:"llm"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type StorageConfig struct {
	Backend string `koanf:"backend"` // file, sqlite
	Path    string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type LLMConfig struct {
	Provider    string `koanf:"provider"` // ollama, mock
	Model       string `koanf:"model"`
	BaseURL     string `koanf:"base_url"`
	MaxAttempts int    `koanf:"max_attempts"`
}

type MCPConfig struct {
	Name    string `koanf:"name"`
	Version string `koanf:"version"`
}

func setDefaults(k *koanf.Koanf) {
	_ = k.Set("log.level", "info")
	_ = k.Set("log.format", "text")

	_ = k.Set("storage.backend", "file")
	_ = k.Set("storage.path", "roles.json")

	_ = k.Set("telemetry.exporter", "none")
	_ = k.Set("telemetry.otlp_insecure", true)

	_ = k.Set("llm.provider", "ollama")
	_ = k.Set("llm.model", "qwen2.5:7b-instruct")
	_ = k.Set("llm.base_url", "http://localhost:11434")
	_ = k.Set("llm.max_attempts", 3)

	_ = k.Set("mcp.name", "kairos-roles")
	_ = k.Set("mcp.version", "dev")
}

// Load reads defaults, the optional YAML file at path and ROLES_* environment overrides.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadWithCLI accepts "--config <path>", "--config=<path>", "--set key=value" and
// "--set=key=value" arguments. --set overrides are applied last.
func LoadWithCLI(args []string) (*Config, error) {
	path := ""
	var sets []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --config")
			}
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --set")
			}
			sets = append(sets, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			sets = append(sets, strings.TrimPrefix(arg, "--set="))
		default:
			return nil, fmt.Errorf("unknown config argument %q", arg)
		}
	}
	return load(path, sets)
}

func load(path string, sets []string) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (ROLES_LLM_BASE_URL -> llm.base_url)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	// 3. CLI overrides
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ROLES_SECTION_SOME_KEY to section.some_key. Only the first
// underscore separates the section since every key lives one level deep.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}
