package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	environ []string
	useEnv  bool
	dotenv  []string
}

// WithEnviron reads overrides from environ instead of the process
// environment.
func WithEnviron(environ []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// WithoutEnv disables environment overrides.
func WithoutEnv() Option {
	return func(o *loadOptions) {
		o.useEnv = false
	}
}

// WithDotEnv loads the given .env files into the process environment
// before overrides are read.
func WithDotEnv(files ...string) Option {
	return func(o *loadOptions) {
		o.dotenv = append(o.dotenv, files...)
	}
}

// Load reads the configuration at path over the defaults and applies
// environment overrides. An empty path reads DefaultFileName if it
// exists. The result is validated.
func Load(path string, opts ...Option) (Config, error) {
	o := loadOptions{useEnv: true}
	for _, opt := range opts {
		opt(&o)
	}

	optional := path == ""
	if optional {
		path = DefaultFileName
	}

	layer, err := readFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && optional:
		layer = nil
	case err != nil:
		return Config{}, err
	}

	if o.useEnv {
		if err := LoadDotEnv(o.dotenv...); err != nil {
			return Config{}, err
		}
		environ := o.environ
		if environ == nil {
			environ = osEnviron()
		}
		layer = deepMerge(layer, envLayer(environ))
	}

	cfg, err := decode(path, layer)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readFile parses a TOML file into a map.
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return parse(path, data)
}

// parse parses TOML data into a map.
func parse(source string, data []byte) (map[string]any, error) {
	var layer map[string]any
	if err := toml.Unmarshal(data, &layer); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return nil, perr
	}
	return layer, nil
}

// decode applies the merged layers over the defaults. Unknown keys are
// rejected.
func decode(source string, layer map[string]any) (Config, error) {
	cfg := Default()
	if len(layer) == 0 {
		return cfg, nil
	}

	data, err := toml.Marshal(layer)
	if err != nil {
		return Config{}, fmt.Errorf("encoding merged config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg Config) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
