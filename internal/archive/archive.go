// Package archive implements the Archive Codec (spec §4.8): packing a
// recording's manifest and chunk blobs into a gzip-compressed tar, and
// unpacking one for replay or inspection.
//
// Grounded on the header-plus-payload framing discipline of the
// teacher's internal/chunk/file/compress.go, adapted to the spec's
// tar+gzip container and its legacy-JSON compatibility requirement.
package archive

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"fsrecorder/internal/chunkstore"
	"fsrecorder/internal/event"
)

// FormatVersion identifies the manifest schema carried in an archive.
const (
	FormatVersion2 = "2.0" // tar+gzip with a chunks/ directory
	FormatVersion1 = "1.0" // legacy inline-only JSON, no chunks
)

// ErrMissingManifest is returned when a v2 archive's tar stream never
// contains a recording.json entry.
var ErrMissingManifest = errors.New("archive: missing recording.json")

const manifestEntryName = "recording.json"
const chunkDirPrefix = "chunks/"

// Metadata is the fixed header of a manifest.
type Metadata struct {
	RecordedAt  string `json:"recorded_at"`
	WatchDir    string `json:"watch_dir"`
	TotalEvents int    `json:"total_events"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`

	// RecordingID identifies a single recording run. Absent (omitted)
	// from legacy v1.0 manifests, which predate the field.
	RecordingID string `json:"recording_id,omitempty"`
}

// Manifest is the full decoded contents of recording.json.
type Manifest struct {
	Metadata Metadata      `json:"metadata"`
	Events   []event.Event `json:"events"`
}

// Write packs manifest and every chunk currently in store (if non-nil)
// into a gzip-compressed tar at path. The manifest's Version is forced
// to FormatVersion2 since this codec always writes the tar container,
// even when store holds zero chunks.
func Write(path string, manifest Manifest, store *chunkstore.Store) error {
	manifest.Metadata.Version = FormatVersion2

	f, err := os.Create(path) //nolint:gosec // path is operator-supplied, same trust level as any CLI output flag
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewWriterLevel(f, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("create gzip writer: %w", err)
	}
	tw := tar.NewWriter(gz)

	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeTarEntry(tw, manifestEntryName, data); err != nil {
		return err
	}

	if store != nil {
		ids, err := store.IDs()
		if err != nil {
			return fmt.Errorf("list chunks: %w", err)
		}
		for _, id := range ids {
			b, err := store.Get(id)
			if err != nil {
				return fmt.Errorf("read chunk %s: %w", id, err)
			}
			if err := writeTarEntry(tw, chunkDirPrefix+id+".bin", b); err != nil {
				return err
			}
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip writer: %w", err)
	}
	return f.Close()
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o600}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar entry %s: %w", name, err)
	}
	return nil
}

// Archive is an opened recording, ready for replay or inspection. Chunks
// referenced by the manifest (if any) are extracted to a temp directory
// that Close removes.
type Archive struct {
	Manifest Manifest
	chunks   *chunkstore.Store // nil for v1 legacy archives with no chunk directory
}

// Open reads path, sniffing its container format per spec §4.8: gzip
// magic bytes mean a v2 tar.gz; a bare tar (no gzip wrapper, regardless
// of file extension) is also accepted as v2; anything else is parsed as
// a v1.0 legacy JSON manifest.
func Open(path string) (*Archive, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, same trust level as any CLI input flag
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	switch {
	case isGzipMagic(b):
		r, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer r.Close()
		return openTar(r)
	case isTarMagic(b):
		return openTar(bytes.NewReader(b))
	default:
		return openLegacyJSON(b)
	}
}

func isGzipMagic(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

// isTarMagic checks for the "ustar" magic at its fixed POSIX tar offset.
func isTarMagic(b []byte) bool {
	const magicOffset = 257
	const magic = "ustar"
	return len(b) >= magicOffset+len(magic) && string(b[magicOffset:magicOffset+len(magic)]) == magic
}

func openTar(r io.Reader) (*Archive, error) {
	tr := tar.NewReader(r)

	a := &Archive{}
	var chunkDir string
	haveManifest := false

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			cleanupDir(chunkDir)
			return nil, fmt.Errorf("read tar entry: %w", err)
		}

		switch {
		case hdr.Name == manifestEntryName:
			data, err := io.ReadAll(tr)
			if err != nil {
				cleanupDir(chunkDir)
				return nil, fmt.Errorf("read manifest entry: %w", err)
			}
			if err := json.Unmarshal(data, &a.Manifest); err != nil {
				cleanupDir(chunkDir)
				return nil, fmt.Errorf("decode manifest: %w", err)
			}
			haveManifest = true

		case len(hdr.Name) > len(chunkDirPrefix) && hdr.Name[:len(chunkDirPrefix)] == chunkDirPrefix:
			if chunkDir == "" {
				chunkDir, err = os.MkdirTemp("", "fsreplayer_")
				if err != nil {
					return nil, fmt.Errorf("create chunk extraction dir: %w", err)
				}
			}
			name := filepath.Base(hdr.Name)
			data, err := io.ReadAll(tr)
			if err != nil {
				cleanupDir(chunkDir)
				return nil, fmt.Errorf("read chunk entry %s: %w", hdr.Name, err)
			}
			if err := os.WriteFile(filepath.Join(chunkDir, name), data, 0o600); err != nil {
				cleanupDir(chunkDir)
				return nil, fmt.Errorf("extract chunk %s: %w", name, err)
			}
		}
	}

	if !haveManifest {
		cleanupDir(chunkDir)
		return nil, ErrMissingManifest
	}

	if chunkDir != "" {
		a.chunks = chunkstore.OpenAt(chunkDir, nil)
	}
	return a, nil
}

// OpenManifestOnly reads just the recording.json entry of path, without
// extracting any chunk blobs to disk. Used by the info command, which
// never needs chunk bytes.
func OpenManifestOnly(path string) (Manifest, error) {
	b, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, same trust level as any CLI input flag
	if err != nil {
		return Manifest{}, fmt.Errorf("read archive: %w", err)
	}

	var tr *tar.Reader
	switch {
	case isGzipMagic(b):
		gr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return Manifest{}, fmt.Errorf("open gzip stream: %w", err)
		}
		defer gr.Close()
		tr = tar.NewReader(gr)
	case isTarMagic(b):
		tr = tar.NewReader(bytes.NewReader(b))
	default:
		var m Manifest
		if err := json.Unmarshal(b, &m); err != nil {
			return Manifest{}, fmt.Errorf("decode legacy manifest: %w", err)
		}
		return m, nil
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return Manifest{}, ErrMissingManifest
		}
		if err != nil {
			return Manifest{}, fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Name != manifestEntryName {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return Manifest{}, fmt.Errorf("decode manifest: %w", err)
		}
		return m, nil
	}
}

func openLegacyJSON(b []byte) (*Archive, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode legacy manifest: %w", err)
	}
	return &Archive{Manifest: m}, nil
}

func cleanupDir(dir string) {
	if dir != "" {
		os.RemoveAll(dir)
	}
}

// Chunk resolves a binary_chunk_id against the archive's extracted
// chunk directory. It is a fatal error within the caller's event if the
// archive carries no chunk directory at all (v1.0) or the id is absent.
func (a *Archive) Chunk(id string) ([]byte, error) {
	if a.chunks == nil {
		return nil, fmt.Errorf("%w: %s (archive has no chunk directory)", chunkstore.ErrChunkNotFound, id)
	}
	return a.chunks.Get(id)
}

// Close removes any temp directory created to extract chunks. Safe to
// call on a v1.0 archive that never created one.
func (a *Archive) Close() error {
	if a.chunks == nil {
		return nil
	}
	return a.chunks.Close()
}
