// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"

	"code.hybscloud.com/chunkio"
	"code.hybscloud.com/chunkio/internal/report"
)

func writeFiles(t *testing.T, contents ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(contents))
	for i, c := range contents {
		paths[i] = filepath.Join(dir, "f"+string(rune('a'+i)))
		if err := os.WriteFile(paths[i], []byte(c), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func runCmd(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = run(t.Context(), args, strings.NewReader(stdin), &out, &errOut)
	return out.String(), errOut.String(), err
}

func digestOf(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestCat(t *testing.T) {
	a := strings.Repeat("alpha ", 5000)
	b := "beta"
	paths := writeFiles(t, a, b)

	out, _, err := runCmd(t, "", "cat", "--chunk-size", "1000", paths[0], paths[1])
	if err != nil {
		t.Fatalf("cat: %v", err)
	}
	if out != a+b {
		t.Fatalf("output length %d, want %d", len(out), len(a+b))
	}
}

func TestCat_Stdin(t *testing.T) {
	paths := writeFiles(t, "file;")
	out, _, err := runCmd(t, "from stdin", "cat", paths[0], "-")
	if err != nil || out != "file;from stdin" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestCat_Compress(t *testing.T) {
	data := strings.Repeat("compressible ", 10_000)
	paths := writeFiles(t, data)

	decoders := map[string]func(io.Reader) (io.Reader, error){
		"zstd": func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		},
		"lz4": func(r io.Reader) (io.Reader, error) { return lz4.NewReader(r), nil },
	}
	for name, decode := range decoders {
		t.Run(name, func(t *testing.T) {
			out, _, err := runCmd(t, "", "cat", "--compress", name, paths[0])
			if err != nil {
				t.Fatalf("cat: %v", err)
			}
			if len(out) >= len(data) {
				t.Fatalf("compressed %d bytes into %d", len(data), len(out))
			}
			r, err := decode(strings.NewReader(out))
			if err != nil {
				t.Fatal(err)
			}
			got, err := io.ReadAll(r)
			if err != nil || string(got) != data {
				t.Fatalf("round trip: len=%d err=%v", len(got), err)
			}
		})
	}

	if _, _, err := runCmd(t, "", "cat", "--compress", "brotli", paths[0]); err == nil {
		t.Fatal("unknown compression accepted")
	}
}

func TestCat_DigestAndReport(t *testing.T) {
	paths := writeFiles(t, "one", "two")
	missing := filepath.Join(t.TempDir(), "missing")
	reportPath := filepath.Join(t.TempDir(), "report.cbor")

	_, stderr, err := runCmd(t, "", "cat", "--digest", "--report", reportPath, "--report-format", "cbor",
		paths[0], missing, paths[1])
	if err == nil || !errors.Is(err, chunkio.ErrResourceOpen) {
		t.Fatalf("err=%v, want the missing file reported", err)
	}
	for _, want := range []string{digestOf("one") + "  " + paths[0], digestOf("two") + "  " + paths[1]} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}

	f, err := os.Open(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rep, err := report.Read(f, report.FormatCBOR)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rep.Records) != 3 || rep.Failed() != 1 || rep.Run == "" {
		t.Fatalf("report=%+v", rep)
	}
	if r := rep.Records[0]; r.Status != "Success" || r.Bytes != 3 || r.Digest != digestOf("one") {
		t.Fatalf("record 0=%+v", r)
	}
	if r := rep.Records[1]; r.Status != "Failure" || r.Kind != "ResourceOpen" || r.Path != missing {
		t.Fatalf("record 1=%+v", r)
	}
}

func TestSum(t *testing.T) {
	contents := []string{"a", strings.Repeat("b", 100_000), "", "d"}
	paths := writeFiles(t, contents...)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	out, _, err := runCmd(t, "", "sum", "-j", "2", "--chunk-size", "4096", "--report", reportPath, paths[0], paths[1], paths[2], paths[3])
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != len(contents) {
		t.Fatalf("lines=%d:\n%s", len(lines), out)
	}
	for i, c := range contents {
		if want := digestOf(c) + "  " + paths[i]; lines[i] != want {
			t.Errorf("line %d=%q, want %q", i, lines[i], want)
		}
	}

	f, err := os.Open(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rep, err := report.Read(f, report.FormatJSON)
	if err != nil || len(rep.Records) != 4 || rep.Failed() != 0 {
		t.Fatalf("report=%+v err=%v", rep, err)
	}
}

func TestConfigFile(t *testing.T) {
	paths := writeFiles(t, "configured")
	cfg := filepath.Join(t.TempDir(), "chunkcat.yaml")
	if err := os.WriteFile(cfg, []byte("chunk_size: 3\nmax_input_buffer_size: 2\ninitial_input_buffer_size: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCmd(t, "", "cat", "--config", cfg, paths[0])
	if err != nil || out != "configured" {
		t.Fatalf("out=%q err=%v", out, err)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("max_input_buffer_size: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCmd(t, "", "cat", "--config", bad, paths[0]); !errors.Is(err, chunkio.ErrInvalidConfiguration) {
		t.Fatalf("err=%v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	cases := [][]string{
		{},
		{"frobnicate"},
		{"cat"},
		{"sum"},
		{"sum", "-j", "0", "x"},
		{"cat", "--chunk-size", "-1", "x"},
		{"cat", "--report-format", "xml", "x"},
	}
	for _, args := range cases {
		if _, _, err := runCmd(t, "", args...); err == nil {
			t.Errorf("run(%q) succeeded", args)
		}
	}
	if _, _, err := runCmd(t, "", "cat", "--help"); !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("--help err=%v", err)
	}
	if out, _, err := runCmd(t, "", "help"); err != nil || !strings.Contains(out, "chunkcat cat") {
		t.Errorf("help out=%q err=%v", out, err)
	}
}
