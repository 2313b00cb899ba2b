// Package capture implements the content-capture policy shared by the
// Snapshot Walker and the Change Detector: given a file's classification
// and the recorder's binary-skip configuration, decide whether its
// bytes are inlined as UTF-8 text, stored in the chunk store, or
// replaced by a size-only placeholder (spec §4.2, §4.6, §4.7).
package capture

import (
	"os"
	"strings"
	"unicode/utf8"

	"fsrecorder/internal/chunkstore"
	"fsrecorder/internal/classify"
	"fsrecorder/internal/hashing"
)

// InlineTextLimit is the maximum size, in bytes, of a text file whose
// content is captured inline rather than routed to the chunk store
// (spec §4.6). Preserved exactly to keep archives byte-compatible.
const InlineTextLimit = 1 << 20 // 1 MiB

// Policy applies the text/binary/placeholder content rules.
type Policy struct {
	Classifier classify.Classifier
	SkipBinary bool
	Store      *chunkstore.Store
}

// Outcome is the result of applying the policy to one file.
type Outcome struct {
	Content     *string
	ChunkID     string
	Placeholder bool
	Hash        string
	Size        int64
	Unreadable  bool
}

// CaptureFile hashes path, classifies it, and applies the capture
// policy. Used for initial_file, created, and full-rewrite modified
// events — every path that captures a file's entire current content.
func (p Policy) CaptureFile(path string) (Outcome, error) {
	hr := hashing.HashFile(path)
	if hr.Unreadable {
		return Outcome{Hash: hr.Hash, Size: hr.Size, Unreadable: true}, nil
	}

	kind, err := p.Classifier.Classify(path)
	if err != nil {
		// Sniffing failed after a successful hash (e.g. permissions
		// changed between the two opens); treat as unreadable rather
		// than silently guessing a classification.
		return Outcome{Hash: hr.Hash, Size: hr.Size, Unreadable: true}, nil
	}

	if kind == classify.Binary && p.SkipBinary {
		return Outcome{Placeholder: true, Hash: hr.Hash, Size: hr.Size}, nil
	}

	if kind == classify.Text && hr.Size < InlineTextLimit {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from a recursive walk of a user-chosen directory
		if err != nil {
			return Outcome{Hash: hr.Hash, Size: hr.Size, Unreadable: true}, nil
		}
		text := strings.ToValidUTF8(string(data), "�")
		return Outcome{Content: &text, Hash: hr.Hash, Size: hr.Size}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from a recursive walk of a user-chosen directory
	if err != nil {
		return Outcome{Hash: hr.Hash, Size: hr.Size, Unreadable: true}, nil
	}
	id, err := p.Store.Put(data)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ChunkID: id, Hash: hr.Hash, Size: hr.Size}, nil
}

// CaptureAppendSuffix applies the append-specific capture rule (spec
// §4.7): try a strict UTF-8 decode of the appended bytes into Content;
// on failure, store the raw bytes as a chunk instead.
func (p Policy) CaptureAppendSuffix(suffix []byte) (content *string, chunkID string, err error) {
	if utf8.Valid(suffix) {
		s := string(suffix)
		return &s, "", nil
	}
	id, err := p.Store.Put(suffix)
	if err != nil {
		return nil, "", err
	}
	return nil, id, nil
}
