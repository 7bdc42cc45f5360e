package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// Load returns defaults overlaid with the file at path (if path is not
// empty) and the environment, validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := Decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnv(&cfg, os.Environ()); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode parses data into cfg using the decoder selected by the extension
// of name. Fields absent from data keep their current values.
func Decode(name string, data []byte, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(name))

	var (
		format string
		err    error
	)
	switch ext {
	case ".toml":
		format = "toml"
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	case ".yaml", ".yml":
		format = "yaml"
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case ".json", ".jsonc", ".hujson":
		format = "jsonc"
		err = decodeJSONC(data, cfg)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	if err != nil {
		return &ParseError{Path: name, Format: format, Err: err}
	}
	return nil
}

func decodeJSONC(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}
