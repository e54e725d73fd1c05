package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ConfigFiles are the configuration file names Project looks for, in order.
var ConfigFiles = []string{"collider.jsonc", "collider.json", "collider.yaml", "collider.yml"}

// Parse decodes a configuration in the format named by ext. JSON input may
// carry comments and trailing commas. Unknown keys are rejected.
func Parse(data []byte, ext string) (Config, error) {
	var cfg Config
	switch ext {
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Project returns the configuration of the project in dir: its configuration
// file when one exists, otherwise the canonical configuration of its layout.
func Project(dir string) (Config, error) {
	for _, name := range ConfigFiles {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return Load(p)
		}
	}

	v, err := Detect(dir)
	if err != nil {
		return Config{}, err
	}
	return ForVariant(v), nil
}
