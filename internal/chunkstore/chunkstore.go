// Package chunkstore implements the Chunk Store (spec §4.4): an
// append-only map from monotonic chunk-id to byte blob, backed by a
// temp directory for the lifetime of a recording run.
//
// Grounded on the ChunkManager shape in the teacher's internal/chunk
// package, reduced to the spec's non-rotating, non-sealing semantics:
// fsrecorder chunks are never rewritten and never deduplicated by
// content, only closed off at archive time.
package chunkstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"fsrecorder/internal/logging"
)

// ErrChunkNotFound is returned by Get for an id the store never produced.
var ErrChunkNotFound = errors.New("chunk not found")

// Store is an append-only, temp-directory-backed chunk blob store.
//
// Not thread-safe beyond what a single-threaded detector requires: Put
// may be called concurrently with Get (e.g. the archive packer reading
// while a final event is appended), but concurrent Puts are not
// supported, matching the single-threaded handler discipline of spec §5.
type Store struct {
	dir     string
	counter atomic.Uint64
	logger  *slog.Logger
}

// Open creates a new temp directory under the OS default temp area with
// the given prefix (the recorder passes fsrecorder_) and returns a Store
// rooted there. The fsreplayer_ directory used on replay is created by
// the archive package and wrapped with OpenAt.
func Open(prefix string, logger *slog.Logger) (*Store, error) {
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("create chunk temp dir: %w", err)
	}
	return &Store{dir: dir, logger: logging.Default(logger).With("component", "chunkstore")}, nil
}

// OpenAt wraps an existing directory of chunk_N.bin files (e.g. one
// extracted from an archive) as a read path, without assigning new ids.
func OpenAt(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logging.Default(logger).With("component", "chunkstore")}
}

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// Put stores b under a new monotonic id and returns that id.
func (s *Store) Put(b []byte) (string, error) {
	n := s.counter.Add(1) - 1
	id := fmt.Sprintf("chunk_%d", n)
	path := filepath.Join(s.dir, id+".bin")
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", id, err)
	}
	s.logger.Debug("chunk stored", "id", id, "bytes", len(b))
	return id, nil
}

// Get reads the bytes stored under id.
func (s *Store) Get(id string) ([]byte, error) {
	path := filepath.Join(s.dir, id+".bin")
	b, err := os.ReadFile(path) //nolint:gosec // id is always produced by Put or validated against a manifest
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// IDs returns every chunk id currently stored, in numeric order.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if filepath.Ext(name) == ".bin" {
			ids = append(ids, name[:len(name)-len(".bin")])
		}
	}
	num := func(id string) int {
		n, _ := strconv.Atoi(strings.TrimPrefix(id, "chunk_"))
		return n
	}
	sort.SliceStable(ids, func(i, j int) bool { return num(ids[i]) < num(ids[j]) })
	return ids, nil
}

// Close removes the store's backing directory. Safe to call on a store
// opened with OpenAt; removes whatever directory it was pointed at.
func (s *Store) Close() error {
	if s.dir == "" {
		return nil
	}
	return os.RemoveAll(s.dir)
}
