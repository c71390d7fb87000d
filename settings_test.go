// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"code.hybscloud.com/chunkio"
)

func writeSettings(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSettings_YAML(t *testing.T) {
	path := writeSettings(t, "chunkio.yaml", `
max_input_buffer_size: 32
chunk_size: 65536
dispatchers:
  blocking-io:
    workers: 4
`)
	s, err := chunkio.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.MaxInputBufferSize != 32 || s.ChunkSize != 65536 {
		t.Fatalf("settings=%+v", s)
	}
	if s.InitialInputBufferSize != chunkio.DefaultInitialInputBufferSize {
		t.Fatalf("default initial lost: %d", s.InitialInputBufferSize)
	}
	if s.Dispatchers["blocking-io"].Workers != 4 {
		t.Fatalf("dispatchers=%+v", s.Dispatchers)
	}
	if s.Dispatchers[chunkio.DefaultIODispatcher].Workers != chunkio.DefaultDispatcherWorkers {
		t.Fatalf("default dispatcher lost: %+v", s.Dispatchers)
	}
}

func TestLoadSettings_JSONC(t *testing.T) {
	path := writeSettings(t, "chunkio.jsonc", `{
  // small buffers for a constrained device
  "initial_input_buffer_size": 1,
  "max_input_buffer_size": 2,
  "default_dispatcher": "slow",
  "dispatchers": {
    "slow": {"workers": 2}, /* trailing comma */
  },
}`)
	s, err := chunkio.LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.InitialInputBufferSize != 1 || s.MaxInputBufferSize != 2 || s.DefaultDispatcher != "slow" {
		t.Fatalf("settings=%+v", s)
	}
}

func TestLoadSettings_Invalid(t *testing.T) {
	cases := map[string]struct {
		name, content string
	}{
		"NotPowerOfTwo":     {"a.yaml", "max_input_buffer_size: 24\n"},
		"MaxBelowInitial":   {"b.yaml", "initial_input_buffer_size: 8\nmax_input_buffer_size: 4\n"},
		"ZeroInitial":       {"c.json", `{"initial_input_buffer_size": 0}`},
		"UnknownDefault":    {"d.yml", "default_dispatcher: nowhere\n"},
		"ZeroWorkers":       {"e.yaml", "dispatchers:\n  io-dispatcher:\n    workers: 0\n"},
		"NegativeChunkSize": {"f.json", `{"chunk_size": -1}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := chunkio.LoadSettings(writeSettings(t, tc.name, tc.content))
			if !errors.Is(err, chunkio.ErrInvalidConfiguration) {
				t.Fatalf("err=%v, want ErrInvalidConfiguration", err)
			}
		})
	}

	if _, err := chunkio.LoadSettings(writeSettings(t, "x.toml", "")); err == nil {
		t.Fatal("unsupported extension accepted")
	}
	if _, err := chunkio.LoadSettings(writeSettings(t, "bad.yaml", "chunk_size: [")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
	if _, err := chunkio.LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file err=%v", err)
	}
}

func TestMaterializer_BufferPolicy(t *testing.T) {
	m, _ := manualMaterializer(t)
	def := chunkio.BufferPolicy{Initial: chunkio.DefaultInitialInputBufferSize, Max: chunkio.DefaultMaxInputBufferSize}

	if got, err := m.BufferPolicy(chunkio.Attributes{}); err != nil || got != def {
		t.Fatalf("default=%+v err=%v", got, err)
	}
	if got, err := m.BufferPolicy(chunkio.InputBuffer(2, 4)); err != nil || got != (chunkio.BufferPolicy{Initial: 2, Max: 4}) {
		t.Fatalf("override=%+v err=%v", got, err)
	}
	for _, attrs := range []chunkio.Attributes{chunkio.InputBuffer(4, 3), chunkio.InputBuffer(0, 4), chunkio.InputBuffer(2, 6)} {
		if _, err := m.BufferPolicy(attrs); !errors.Is(err, chunkio.ErrInvalidConfiguration) {
			t.Fatalf("BufferPolicy(%v) err=%v", attrs, err)
		}
	}
}

func TestDescriptor_InvalidInputBuffer(t *testing.T) {
	m, exec := manualMaterializer(t)
	src, spy := spySource(t, pattern(8), 4)
	pub, future := src.WithAttributes(chunkio.InputBuffer(4, 3)).Materialize(m)

	r, ok := future.Result()
	if !ok || !r.WasFailed() || !errors.Is(r.Err, chunkio.ErrInvalidConfiguration) {
		t.Fatalf("result=%+v ok=%v", r, ok)
	}
	if k, _ := chunkio.KindOf(r.Err); k != chunkio.KindConfiguration {
		t.Fatalf("kind=%v", k)
	}
	rec := newRecorder(1)
	pub.Subscribe(rec)
	if _, gotErr, _, _, _ := rec.snapshot(); gotErr != r.Err {
		t.Fatalf("OnError=%v", gotErr)
	}
	if exec.Runs() != 0 || spy.Reads() != 0 || spy.Closes() != 0 {
		t.Fatalf("runs=%d reads=%d closes=%d", exec.Runs(), spy.Reads(), spy.Closes())
	}
}

func TestNewMaterializer_RejectsInvalidSettings(t *testing.T) {
	s := chunkio.DefaultSettings()
	s.MaxInputBufferSize = 3
	if _, err := chunkio.NewMaterializer(s); !errors.Is(err, chunkio.ErrInvalidConfiguration) {
		t.Fatalf("err=%v", err)
	}
}
