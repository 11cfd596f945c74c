package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	configPathEnv = "CONFIG_PATH"
	configTag     = "key"
)

//go:embed config.default.yaml
var defaultConfig []byte

// ConfigManager loads the embedded defaults and overlays an optional
// config file pointed to by CONFIG_PATH.
type ConfigManager[T any] struct {
	kf *koanf.Koanf
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	cm := &ConfigManager[T]{kf: koanf.New(".")}

	if err := cm.kf.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		if err := cm.LoadFile(path); err != nil {
			return nil, err
		}
	}

	return cm, nil
}

// LoadFile overlays a yaml or json file on top of the current values.
func (cm *ConfigManager[T]) LoadFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parser = json.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}

	if err := cm.kf.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// Set overrides a single dotted key. Used by tests and the CLI.
func (cm *ConfigManager[T]) Set(key string, value any) error {
	return cm.kf.Set(key, value)
}

func (cm *ConfigManager[T]) GetConfig() T {
	var config T
	if err := cm.kf.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: configTag}); err != nil {
		panic(fmt.Sprintf("failed to unmarshal config: %v", err))
	}
	return config
}
