// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

// TeeWriter returns a Writer that writes every chunk to primary and then to
// tee, typically a destination and a digest. tee only sees bytes primary
// fully accepted. ErrWouldBlock and ErrMore are returned unchanged.
func TeeWriter(primary Writer, tee Writer) Writer {
	return &teeWriter{primary: primary, tee: tee}
}

// TeeWriterPolicy is like TeeWriter but consults policy on semantic errors
// from either side, retrying the unwritten remainder on PolicyRetry.
func TeeWriterPolicy(primary Writer, tee Writer, policy SemanticPolicy) Writer {
	return &teeWriter{primary: primary, tee: tee, policy: policy}
}

type teeWriter struct {
	primary Writer
	tee     Writer
	policy  SemanticPolicy
}

// Write reports progress on the side that failed: n counts primary bytes
// when primary fails and tee bytes when tee fails.
func (t *teeWriter) Write(p []byte) (int, error) {
	if n, err := writeAll(t.primary, p, OpTeeWriterPrimaryWrite, t.policy); err != nil {
		return n, err
	}
	if n, err := writeAll(t.tee, p, OpTeeWriterTeeWrite, t.policy); err != nil {
		return n, err
	}
	return len(p), nil
}
