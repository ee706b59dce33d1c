package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/astrolabe/pkg/errors"
)

// File names searched by the loader.
const (
	UserConfigDir  = ".config/astrolabe"
	UserConfigTOML = "config.toml"
	UserConfigYAML = "config.yaml"
)

// ProjectConfigFiles are searched in order in each directory.
var ProjectConfigFiles = []string{"astrolabe.toml", "astrolabe.yaml", "astrolabe.yml"}

// Format is a configuration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension; anything that is not
// .yaml or .yml is TOML.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *log.Logger

	// HomeDir and WorkDir override the user home and working directory.
	HomeDir string
	WorkDir string
}

// NewLoader creates a new configuration loader. A nil logger discards.
func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Loader{logger: logger}
}

// Load builds the configuration:
//  1. Defaults
//  2. User config (~/.config/astrolabe/config.toml or config.yaml)
//  3. Project config (astrolabe.toml/.yaml in the working directory or a parent)
//  4. explicit, if non-empty
//
// The result is validated.
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := Default()

	if path := l.userConfigPath(); path != "" {
		if err := DecodeFile(path, cfg); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded user config", "path", path)
	}

	if path := l.findProjectConfig(); path != "" {
		if err := DecodeFile(path, cfg); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded project config", "path", path)
	} else {
		l.logger.Debug("no project config found")
	}

	if explicit != "" {
		if err := DecodeFile(explicit, cfg); err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", "path", explicit)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DecodeFile overlays the file at path onto cfg. Keys absent from the
// file keep their current values.
func DecodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Decode(data, FormatFor(path), cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return nil
}

// Decode overlays data in the given format onto cfg. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func Decode(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return err
		}
		return nil
	default:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
		return nil
	}
}

// Marshal encodes cfg in the given format.
func Marshal(cfg *Config, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// SaveFile writes cfg to path in the format implied by its extension.
func SaveFile(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := Marshal(cfg, FormatFor(path))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// userConfigPath returns the first existing user config file.
func (l *Loader) userConfigPath() string {
	home := l.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	for _, name := range []string{UserConfigTOML, UserConfigYAML} {
		path := filepath.Join(home, UserConfigDir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findProjectConfig searches the working directory and its parents.
func (l *Loader) findProjectConfig() string {
	dir := l.WorkDir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return ""
		}
	}

	for {
		for _, name := range ProjectConfigFiles {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
