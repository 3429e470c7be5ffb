// Package config loads offsync configuration files.
//
// A config file is YAML (.yaml, .yml) or CUE (.cue). Either way the
// document is unified with the embedded schema (schema.cue, #Config) and
// must validate as concrete before it is decoded. Unknown fields are
// rejected because #Config is a closed definition.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Defaults applied to fields the file leaves unset.
const (
	DefaultDatabase      = "offsync.db"
	DefaultRedisURL      = "redis://localhost:6379/0"
	DefaultProbeInterval = 5 * time.Second
)

// Config is the resolved configuration.
type Config struct {
	Database      string
	Redis         Redis
	ProbeInterval time.Duration
	MetricsAddr   string
	Collections   []Collection
}

// Redis configures the remote backend.
type Redis struct {
	URL    string
	Prefix string
}

// Collection carries per-collection settings.
type Collection struct {
	Name        string
	IDGenerator string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database:      DefaultDatabase,
		Redis:         Redis{URL: DefaultRedisURL},
		ProbeInterval: DefaultProbeInterval,
	}
}

// Collection returns the settings for name, if configured.
func (c *Config) Collection(name string) (Collection, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return Collection{}, false
}

// Error reports an invalid config file.
type Error struct {
	File    string
	Pos     token.Pos
	Message string
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// IsConfigError reports whether err is (or wraps) an *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// file mirrors #Config for decoding.
type file struct {
	Database string `json:"database"`
	Redis    struct {
		URL    string `json:"url"`
		Prefix string `json:"prefix"`
	} `json:"redis"`
	ProbeInterval string `json:"probe_interval"`
	MetricsAddr   string `json:"metrics_addr"`
	Collections   []struct {
		Name        string `json:"name"`
		IDGenerator string `json:"id_generator"`
	} `json:"collections"`
}

// Load reads and validates the file at path. An empty path returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data as the config named filename. The extension selects
// the format.
func Parse(filename string, data []byte) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	var doc cue.Value
	switch ext := filepath.Ext(filename); ext {
	case ".cue":
		doc = ctx.CompileBytes(data, cue.Filename(filename))
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, &Error{File: filename, Message: err.Error()}
		}
		if m == nil {
			m = map[string]any{}
		}
		doc = ctx.Encode(m)
	default:
		return nil, &Error{File: filename, Message: fmt.Sprintf("unsupported config format %q", ext)}
	}
	if err := doc.Err(); err != nil {
		return nil, cueError(filename, err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(filename, err)
	}

	var f file
	if err := value.Decode(&f); err != nil {
		return nil, cueError(filename, err)
	}
	return resolve(filename, f)
}

func resolve(filename string, f file) (*Config, error) {
	cfg := Default()
	if f.Database != "" {
		cfg.Database = f.Database
	}
	if f.Redis.URL != "" {
		cfg.Redis.URL = f.Redis.URL
	}
	cfg.Redis.Prefix = f.Redis.Prefix
	cfg.MetricsAddr = f.MetricsAddr

	if f.ProbeInterval != "" {
		d, err := time.ParseDuration(f.ProbeInterval)
		if err != nil {
			return nil, &Error{File: filename, Message: fmt.Sprintf("probe_interval: %v", err)}
		}
		if d <= 0 {
			return nil, &Error{File: filename, Message: "probe_interval: must be positive"}
		}
		cfg.ProbeInterval = d
	}

	seen := make(map[string]bool, len(f.Collections))
	for _, col := range f.Collections {
		if seen[col.Name] {
			return nil, &Error{File: filename, Message: fmt.Sprintf("collection %q listed twice", col.Name)}
		}
		seen[col.Name] = true
		cfg.Collections = append(cfg.Collections, Collection{Name: col.Name, IDGenerator: col.IDGenerator})
	}
	return cfg, nil
}

// cueError converts the first CUE error into an *Error with its position.
func cueError(filename string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{File: filename, Message: err.Error()}
	}
	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if path := first.Path(); len(path) > 0 {
		msg = strings.Join(path, ".") + ": " + msg
	}
	return &Error{File: filename, Pos: first.Position(), Message: msg}
}
