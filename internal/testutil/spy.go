// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package testutil

import (
	"io"
	"sync"
)

// SpyStream wraps a reader and records how it is used. ReadErr, when set,
// is returned once the wrapped reader has produced FailAfter bytes.
type SpyStream struct {
	R         io.Reader
	ReadErr   error
	FailAfter int64
	CloseErr  error

	mu     sync.Mutex
	reads  int
	closes int
	served int64
}

func (s *SpyStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	s.reads++
	if s.ReadErr != nil && s.served >= s.FailAfter {
		s.mu.Unlock()
		return 0, s.ReadErr
	}
	if s.ReadErr != nil && int64(len(p)) > s.FailAfter-s.served {
		p = p[:s.FailAfter-s.served]
	}
	s.mu.Unlock()

	n, err := s.R.Read(p)

	s.mu.Lock()
	s.served += int64(n)
	s.mu.Unlock()
	return n, err
}

func (s *SpyStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return s.CloseErr
}

// Reads returns the number of Read calls.
func (s *SpyStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closes returns the number of Close calls.
func (s *SpyStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
