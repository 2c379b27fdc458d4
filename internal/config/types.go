package config

// Config represents the complete pumpkindb configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
	API     APIConfig     `yaml:"api,omitempty"`

	// SourcePath is the file the config was loaded from, empty for defaults.
	SourcePath string `yaml:"-"`
	// Fingerprint is the BLAKE3 hex digest of the source file.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the program listener.
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	MaxFrameSize int    `yaml:"max_frame_size"`
}

// EngineConfig bounds program execution.
type EngineConfig struct {
	MaxConcurrent  int `yaml:"max_concurrent"`
	MaxCallDepth   int `yaml:"max_call_depth"`
	ArenaChunkSize int `yaml:"arena_chunk_size"`
}

// StorageConfig defines the key/value database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// Token, when set, is required as a bearer token. Usually ${VAR}.
	Token string `yaml:"token"`
}

// Defaults returns a config with default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "pumpkindb",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:9981",
			MaxFrameSize: 64 << 20,
		},
		Engine: EngineConfig{
			MaxConcurrent:  64,
			MaxCallDepth:   1024,
			ArenaChunkSize: 4096,
		},
		Storage: StorageConfig{
			Path: "./data/pumpkin.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9982",
		},
	}
}
