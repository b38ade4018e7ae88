// Package config loads registryctl configuration from defaults, an optional
// YAML file and REGISTRY_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/woxQAQ/memory-registry/internal/client"
	"github.com/woxQAQ/memory-registry/internal/wasm"
)

// EnvPrefix prefixes environment overrides, e.g. REGISTRY_WASM_DEBUG.
const EnvPrefix = "REGISTRY"

type Config struct {
	ArtifactPaths []string     `mapstructure:"artifact_paths"`
	LogLevel      string       `mapstructure:"log_level"`
	Wasm          WasmConfig   `mapstructure:"wasm"`
	Client        ClientConfig `mapstructure:"client"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Enable debug logging.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty disables the on-disk cache.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Per-call execution timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
}

// ClientConfig holds registry client configuration.
type ClientConfig struct {
	InitialReadBuffer uint32 `mapstructure:"initial_read_buffer"`
	MaxReadBuffer     uint32 `mapstructure:"max_read_buffer"`
	// Use the in-process registry when an artifact is unusable.
	Fallback bool `mapstructure:"fallback"`
	// Pages of memory for the in-process registry.
	LocalMemoryPages uint32 `mapstructure:"local_memory_pages"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("artifact_paths", []string{"./build/artifacts"})
	v.SetDefault("log_level", "info")

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)

	// Client defaults
	opts := client.DefaultOptions()
	v.SetDefault("client.initial_read_buffer", opts.InitialReadBuffer)
	v.SetDefault("client.max_read_buffer", opts.MaxReadBuffer)
	v.SetDefault("client.fallback", opts.Fallback)
	v.SetDefault("client.local_memory_pages", opts.LocalMemoryPages)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// RuntimeConfig converts the wasm section for wasm.NewRuntime.
func (c *Config) RuntimeConfig() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:      c.Wasm.MemoryPages,
		DebugEnabled:     c.Wasm.Debug,
		CacheDir:         c.Wasm.CacheDir,
		MaxInstances:     c.Wasm.MaxInstances,
		ExecutionTimeout: time.Duration(c.Wasm.ExecutionTimeout) * time.Second,
	}
}

// ClientOptions converts the client section for client.Open.
func (c *Config) ClientOptions() client.Options {
	return client.Options{
		InitialReadBuffer: c.Client.InitialReadBuffer,
		MaxReadBuffer:     c.Client.MaxReadBuffer,
		Fallback:          c.Client.Fallback,
		LocalMemoryPages:  c.Client.LocalMemoryPages,
	}
}
