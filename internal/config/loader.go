package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	DataDir   string `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	ModelFile string `json:"model_file" yaml:"model_file" toml:"model_file"`
	ModelURL  string `json:"model_url" yaml:"model_url" toml:"model_url"`
	AuthToken string `json:"auth_token" yaml:"auth_token" toml:"auth_token"`

	// Engine construction parameters.
	MaxTokens   int `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	MaxImages   int `json:"max_images" yaml:"max_images" toml:"max_images"`
	ContextSize int `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int `json:"threads" yaml:"threads" toml:"threads"`

	// Sampling parameters passed through to the engine unchanged.
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopK        int     `json:"top_k" yaml:"top_k" toml:"top_k"`
	TopP        float64 `json:"top_p" yaml:"top_p" toml:"top_p"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
