// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// chunkcat streams files through chunk sources.
//
//	chunkcat cat [flags] FILE...   concatenate files to stdout or --output
//	chunkcat sum [flags] FILE...   print the BLAKE3 digest of each file
//
// A FILE of "-" reads standard input. Every run can write a CBOR or JSON
// report of the per-file results with --report.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/pflag"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/chunkio"
	"code.hybscloud.com/chunkio/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "chunkcat: %v\n", err)
		os.Exit(1)
	}
}

// env carries the process streams so tests can run commands in-process.
type env struct {
	stdin          io.Reader
	stdout, stderr io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	e := env{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) == 0 {
		printUsage(stderr)
		return fmt.Errorf("missing command")
	}
	switch args[0] {
	case "cat":
		return runCat(ctx, e, args[1:])
	case "sum":
		return runSum(ctx, e, args[1:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  chunkcat cat [flags] FILE...
  chunkcat sum [flags] FILE...

Run "chunkcat <command> --help" for the flags of a command.
`)
}

// common holds the flags shared by every command.
type common struct {
	config       string
	chunkSize    int
	verbose      bool
	reportPath   string
	reportFormat string
}

func (c *common) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "settings file (.yaml, .yml, .json, .jsonc)")
	fs.IntVar(&c.chunkSize, "chunk-size", 0, "chunk size in bytes (default: chunk_size from settings)")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log source lifecycle to stderr")
	fs.StringVar(&c.reportPath, "report", "", "write a per-file result report to this path")
	fs.StringVar(&c.reportFormat, "report-format", string(report.FormatJSON), "report encoding: cbor or json")
}

// session is the state shared by the files of one command.
type session struct {
	common
	env
	settings chunkio.Settings
	format   report.Format
	logger   *slog.Logger
	m        *chunkio.Materializer
}

func (c common) open(e env) (*session, error) {
	s := &session{common: c, env: e, settings: chunkio.DefaultSettings()}
	if c.config != "" {
		settings, err := chunkio.LoadSettings(c.config)
		if err != nil {
			return nil, err
		}
		s.settings = settings
	}
	if c.chunkSize < 0 {
		return nil, fmt.Errorf("--chunk-size must be positive, got %d", c.chunkSize)
	}
	if c.chunkSize == 0 {
		s.chunkSize = s.settings.ChunkSize
	}
	format, err := report.ParseFormat(c.reportFormat)
	if err != nil {
		return nil, err
	}
	s.format = format

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	s.logger = slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
	s.m, err = chunkio.NewMaterializer(s.settings, chunkio.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.m.Shutdown(ctx); err != nil {
		s.logger.Warn("materializer shutdown", "error", err)
	}
}

// source describes the chunk source for one command-line file.
func (s *session) source(path string) (*chunkio.SourceDescriptor, error) {
	if path == "-" {
		stdin := s.stdin
		src, err := chunkio.FromStream(func() (io.ReadCloser, error) { return io.NopCloser(stdin), nil }, s.chunkSize)
		if err != nil {
			return nil, err
		}
		return src.Named("stdin"), nil
	}
	src, err := chunkio.FromFile(path, s.chunkSize)
	if err != nil {
		return nil, err
	}
	return src.Named(path), nil
}

// stream copies one file into dst and returns its report record.
func (s *session) stream(ctx context.Context, path string, dst io.Writer) (report.Record, error) {
	started := time.Now()
	src, err := s.source(path)
	if err != nil {
		return report.Record{Source: path, Path: path, Status: chunkio.StatusFailure.String(), Error: err.Error()}, err
	}
	pub, future := src.Materialize(s.m)
	n, err := chunkio.Copy(ctx, dst, pub, chunkio.YieldPolicy{})

	var r chunkio.IOResult
	if ctx.Err() != nil {
		// The engine may still be blocked in a read; do not wait for it.
		var ok bool
		if r, ok = future.Result(); !ok {
			r = chunkio.Cancelled(uint64(n), ctx.Err())
		}
	} else {
		r, _ = future.Wait(ctx)
	}
	rec := report.FromResult(src.Name(), r)
	rec.Path = path
	rec.Elapsed = time.Since(started)
	return rec, err
}

func (s *session) writeReport(started time.Time, records []report.Record) error {
	if s.reportPath == "" {
		return nil
	}
	f, err := os.Create(s.reportPath)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	rep := report.Report{Run: uuid.NewString(), Started: started, Records: records}
	if err := report.Write(f, s.format, rep); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

func runCat(ctx context.Context, e env, args []string) error {
	var c common
	var output, compress string
	var digest bool
	fs := pflag.NewFlagSet("cat", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	c.addFlags(fs)
	fs.StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	fs.StringVar(&compress, "compress", "none", "output compression: none, zstd or lz4")
	fs.BoolVar(&digest, "digest", false, "print the BLAKE3 digest of each file to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("cat: no files")
	}

	s, err := c.open(e)
	if err != nil {
		return err
	}
	defer s.close()

	var out io.Writer = e.stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	cw, err := compressor(out, compress)
	if err != nil {
		return err
	}

	started := time.Now()
	records := make([]report.Record, 0, len(files))
	var errs []error
	for _, path := range files {
		dst := io.Writer(cw)
		var h *blake3.Hasher
		if digest {
			h = blake3.New()
			dst = chunkio.TeeWriter(cw, h)
		}
		rec, err := s.stream(ctx, path, dst)
		if h != nil && err == nil {
			rec.Digest = hex.EncodeToString(h.Sum(nil))
			fmt.Fprintf(e.stderr, "%s  %s\n", rec.Digest, path)
		}
		records = append(records, rec)
		if err != nil {
			s.logger.Error("cat failed", "file", path, "bytes", rec.Bytes, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	if err := cw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing compressor: %w", err))
	}
	if err := s.writeReport(started, records); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// compressor wraps w in the named stream compressor. Close flushes the
// compressed stream but never closes w.
func compressor(w io.Writer, name string) (io.WriteCloser, error) {
	switch name {
	case "", "none":
		return nopWriteCloser{w}, nil
	case "zstd":
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case "lz4":
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown compression %q (want none, zstd or lz4)", name)
	}
}

func runSum(ctx context.Context, e env, args []string) error {
	var c common
	var jobs int
	fs := pflag.NewFlagSet("sum", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	c.addFlags(fs)
	fs.IntVarP(&jobs, "jobs", "j", 4, "files hashed concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("sum: no files")
	}
	if jobs <= 0 {
		return fmt.Errorf("--jobs must be positive, got %d", jobs)
	}

	s, err := c.open(e)
	if err != nil {
		return err
	}
	defer s.close()

	started := time.Now()
	records := make([]report.Record, len(files))
	errs := make([]error, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range files {
		g.Go(func() error {
			h := blake3.New()
			rec, err := s.stream(gctx, path, h)
			if err == nil {
				rec.Digest = hex.EncodeToString(h.Sum(nil))
			} else {
				errs[i] = fmt.Errorf("%s: %w", path, err)
				s.logger.Error("sum failed", "file", path, "error", err)
			}
			records[i] = rec
			// One bad file does not stop the others.
			return nil
		})
	}
	_ = g.Wait()

	for i, rec := range records {
		if errs[i] == nil {
			fmt.Fprintf(e.stdout, "%s  %s\n", rec.Digest, files[i])
		}
	}
	if err := s.writeReport(started, records); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
