// Package snapshot gives each analyzer its own rewindable view of a shared image stream.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrTooLarge is returned when the stream holds more than the configured maximum.
var ErrTooLarge = errors.New("image exceeds maximum size")

// Source wraps a seekable image stream. The stream is read once, under a lock, and every
// snapshot after that is a fresh reader over the same immutable byte slice.
type Source struct {
	mu      sync.Mutex
	rs      io.ReadSeeker
	data    []byte
	loaded  bool
	maxSize int64
}

// NewSource wraps rs. A maxSize of zero or less disables the size bound.
func NewSource(rs io.ReadSeeker, maxSize int64) *Source {
	return &Source{rs: rs, maxSize: maxSize}
}

// FromBytes returns a Source that is already materialised.
func FromBytes(b []byte) *Source {
	return &Source{data: b, loaded: true}
}

// Snapshot returns a private reader positioned at the start of the image.
func (s *Source) Snapshot() (*bytes.Reader, error) {
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Bytes returns the materialised image. The slice must not be modified.
func (s *Source) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return s.data, nil
	}
	if s.rs == nil {
		return nil, errors.New("snapshot: nil source stream")
	}

	data, err := s.readAll()
	if err != nil {
		return nil, err
	}
	s.data = data
	s.loaded = true
	return s.data, nil
}

// readAll copies the whole stream and leaves the caller's cursor where it found it.
// Must be called with s.mu held.
func (s *Source) readAll() ([]byte, error) {
	pos, err := s.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("snapshot: save position: %w", err)
	}
	if _, err := s.rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("snapshot: rewind: %w", err)
	}

	var r io.Reader = s.rs
	if s.maxSize > 0 {
		r = &io.LimitedReader{R: s.rs, N: s.maxSize + 1}
	}
	var buf bytes.Buffer
	_, copyErr := io.Copy(&buf, r)

	if _, err := s.rs.Seek(pos, io.SeekStart); err != nil && copyErr == nil {
		copyErr = fmt.Errorf("snapshot: restore position: %w", err)
	}
	if copyErr != nil {
		return nil, fmt.Errorf("snapshot: read: %w", copyErr)
	}
	if s.maxSize > 0 && int64(buf.Len()) > s.maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxSize)
	}
	return buf.Bytes(), nil
}
