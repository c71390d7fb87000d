// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultChunkSize is the chunk size used by callers that do not pick one.
	DefaultChunkSize = 8192

	DefaultInitialInputBufferSize = 16
	DefaultMaxInputBufferSize     = 16
	DefaultDispatcherWorkers      = 16
)

// DispatcherSettings configures one named pool.
type DispatcherSettings struct {
	Workers int `yaml:"workers" json:"workers"`
}

// Settings is the materializer-wide configuration. Per-descriptor
// attributes override the buffer sizes and the dispatcher name.
type Settings struct {
	InitialInputBufferSize int                           `yaml:"initial_input_buffer_size" json:"initial_input_buffer_size"`
	MaxInputBufferSize     int                           `yaml:"max_input_buffer_size" json:"max_input_buffer_size"`
	ChunkSize              int                           `yaml:"chunk_size" json:"chunk_size"`
	DefaultDispatcher      string                        `yaml:"default_dispatcher" json:"default_dispatcher"`
	Dispatchers            map[string]DispatcherSettings `yaml:"dispatchers" json:"dispatchers"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		InitialInputBufferSize: DefaultInitialInputBufferSize,
		MaxInputBufferSize:     DefaultMaxInputBufferSize,
		ChunkSize:              DefaultChunkSize,
		DefaultDispatcher:      DefaultIODispatcher,
		Dispatchers: map[string]DispatcherSettings{
			DefaultIODispatcher: {Workers: DefaultDispatcherWorkers},
		},
	}
}

// LoadSettings reads a configuration file and merges it over
// DefaultSettings. YAML (.yaml, .yml) and JSON with comments (.json,
// .jsonc) are accepted. The result is validated.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings %s: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &s)
	default:
		return Settings{}, fmt.Errorf("settings %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the buffer policy and dispatcher table.
func (s Settings) Validate() error {
	if err := validateBuffer(s.InitialInputBufferSize, s.MaxInputBufferSize); err != nil {
		return err
	}
	if s.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidConfiguration, s.ChunkSize)
	}
	if s.DefaultDispatcher == "" {
		return fmt.Errorf("%w: default_dispatcher is empty", ErrInvalidConfiguration)
	}
	if _, ok := s.Dispatchers[s.DefaultDispatcher]; !ok {
		return fmt.Errorf("%w: default_dispatcher %q is not defined", ErrInvalidConfiguration, s.DefaultDispatcher)
	}
	for name, d := range s.Dispatchers {
		if d.Workers <= 0 {
			return fmt.Errorf("%w: dispatcher %q needs at least one worker", ErrInvalidConfiguration, name)
		}
	}
	return nil
}

func validateBuffer(initial, max int) error {
	if initial <= 0 {
		return fmt.Errorf("%w: initial input buffer size must be > 0, got %d", ErrInvalidConfiguration, initial)
	}
	if max < initial {
		return fmt.Errorf("%w: max input buffer size %d is below initial %d", ErrInvalidConfiguration, max, initial)
	}
	if max&(max-1) != 0 {
		return fmt.Errorf("%w: max input buffer size must be a power of two, got %d", ErrInvalidConfiguration, max)
	}
	return nil
}

// BufferPolicy bounds the number of chunks in flight. Initial is the
// demand Copy and ChunkReader keep outstanding against the source; Max caps
// the chunks an engine reads in one turn.
type BufferPolicy struct {
	Initial int
	Max     int
}

// bufferPolicy resolves the effective buffer policy for attrs. An invalid
// attribute override is an ErrInvalidConfiguration error.
func (s Settings) bufferPolicy(attrs Attributes) (BufferPolicy, error) {
	b, ok := attrs.InputBuffer()
	if !ok {
		return BufferPolicy{Initial: s.InitialInputBufferSize, Max: s.MaxInputBufferSize}, nil
	}
	if err := validateBuffer(b.Initial, b.Max); err != nil {
		return BufferPolicy{}, fmt.Errorf("input buffer attribute: %w", err)
	}
	return BufferPolicy{Initial: b.Initial, Max: b.Max}, nil
}
