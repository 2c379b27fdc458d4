package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "PUMPKINDB_CONFIG"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Resolve picks the config source: the flag value, then $PUMPKINDB_CONFIG.
// An empty result means built-in defaults.
func Resolve(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(EnvConfigPath)
}

// LoadOrDefaults loads path, or returns validated defaults when path is empty.
func LoadOrDefaults(path string) (*Config, error) {
	if path == "" {
		cfg := Defaults()
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Load reads and parses configuration from a file. A directory is taken to
// contain config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg = applyConfigDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sum := blake3.Sum256(data)
	cfg.SourcePath = absPath
	cfg.Fingerprint = hex.EncodeToString(sum[:])
	return cfg, nil
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = defaults.Service.LogFormat
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = defaults.Server.Listen
	}
	if cfg.Server.MaxFrameSize == 0 {
		cfg.Server.MaxFrameSize = defaults.Server.MaxFrameSize
	}

	if cfg.Engine.MaxConcurrent == 0 {
		cfg.Engine.MaxConcurrent = defaults.Engine.MaxConcurrent
	}
	if cfg.Engine.MaxCallDepth == 0 {
		cfg.Engine.MaxCallDepth = defaults.Engine.MaxCallDepth
	}
	if cfg.Engine.ArenaChunkSize == 0 {
		cfg.Engine.ArenaChunkSize = defaults.Engine.ArenaChunkSize
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaults.Storage.Path
	}

	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	return cfg
}

// interpolateEnv replaces ${VAR} with its value. Unset variables are left in
// place so validation can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if err := validateListen("server.listen", cfg.Server.Listen); err != nil {
		return err
	}
	if cfg.Server.MaxFrameSize < 0 {
		return fmt.Errorf("server.max_frame_size must be positive")
	}

	if cfg.Engine.MaxConcurrent < 0 {
		return fmt.Errorf("engine.max_concurrent must be positive")
	}
	if cfg.Engine.MaxCallDepth < 0 {
		return fmt.Errorf("engine.max_call_depth must be positive")
	}
	if cfg.Engine.ArenaChunkSize < 0 {
		return fmt.Errorf("engine.arena_chunk_size must be positive")
	}

	if cfg.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if envVarPattern.MatchString(cfg.Storage.Path) {
		return fmt.Errorf("storage.path: environment variable ${%s} is not set", envVarPattern.FindStringSubmatch(cfg.Storage.Path)[1])
	}

	if cfg.API.Enabled {
		if err := validateListen("api.listen", cfg.API.Listen); err != nil {
			return err
		}
		if envVarPattern.MatchString(cfg.API.Token) {
			return fmt.Errorf("api.token: environment variable ${%s} is not set", envVarPattern.FindStringSubmatch(cfg.API.Token)[1])
		}
		if cfg.API.Listen == cfg.Server.Listen {
			return fmt.Errorf("api.listen and server.listen must differ (both %q)", cfg.API.Listen)
		}
	}

	return nil
}

func validateListen(field, addr string) error {
	if envVarPattern.MatchString(addr) {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, envVarPattern.FindStringSubmatch(addr)[1])
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
