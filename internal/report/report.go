// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package report records the terminal results of chunk sources and
// encodes them as CBOR or JSON.
//
// CBOR output uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same report always produces identical bytes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"code.hybscloud.com/chunkio"
)

// Version is the current report schema version.
const Version = 1

// Format selects the report encoding.
type Format string

const (
	FormatCBOR Format = "cbor"
	FormatJSON Format = "json"
)

// ParseFormat accepts "cbor" or "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCBOR, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", s)
	}
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("report: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("report: CBOR decoder initialization failed: " + err.Error())
	}
}

// Record is the outcome of one materialization.
type Record struct {
	Source  string        `cbor:"source" json:"source"`
	Path    string        `cbor:"path,omitempty" json:"path,omitempty"`
	Status  string        `cbor:"status" json:"status"`
	Bytes   uint64        `cbor:"bytes" json:"bytes"`
	Error   string        `cbor:"error,omitempty" json:"error,omitempty"`
	Kind    string        `cbor:"kind,omitempty" json:"kind,omitempty"`
	Digest  string        `cbor:"digest,omitempty" json:"digest,omitempty"`
	Elapsed time.Duration `cbor:"elapsed_ns" json:"elapsed_ns"`
}

// FromResult builds a Record from a source's terminal result.
func FromResult(source string, r chunkio.IOResult) Record {
	rec := Record{Source: source, Status: r.Status.String(), Bytes: r.Count}
	if r.Err != nil {
		rec.Error = r.Err.Error()
		if k, ok := chunkio.KindOf(r.Err); ok {
			rec.Kind = k.String()
		}
	}
	return rec
}

// Report is a batch of records from one invocation.
type Report struct {
	Version int       `cbor:"version" json:"version"`
	Run     string    `cbor:"run" json:"run"`
	Started time.Time `cbor:"started" json:"started"`
	Records []Record  `cbor:"records" json:"records"`
}

// Failed returns the number of records whose status is not Success.
func (r Report) Failed() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status != chunkio.StatusSuccess.String() {
			n++
		}
	}
	return n
}

// Write encodes rep to w in format f.
func Write(w io.Writer, f Format, rep Report) error {
	if rep.Version == 0 {
		rep.Version = Version
	}
	switch f {
	case FormatCBOR:
		return encMode.NewEncoder(w).Encode(rep)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	default:
		return fmt.Errorf("report: unknown format %q", f)
	}
}

// Read decodes a report written by Write.
func Read(r io.Reader, f Format) (Report, error) {
	var rep Report
	var err error
	switch f {
	case FormatCBOR:
		err = decMode.NewDecoder(r).Decode(&rep)
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&rep)
	default:
		return Report{}, fmt.Errorf("report: unknown format %q", f)
	}
	if err != nil {
		return Report{}, fmt.Errorf("report: decoding %s: %w", f, err)
	}
	if rep.Version != Version {
		return Report{}, fmt.Errorf("report: unsupported version %d", rep.Version)
	}
	return rep, nil
}
