// Package event defines the tagged-variant record that makes up a
// recording's ordered log. Each Event carries only the fields applicable
// to its Kind, but always serializes to a single flat JSON object so
// archives stay wire-compatible across the tagged-variant/dynamic-dict
// boundary described in the format notes.
package event

import "fmt"

// Kind identifies the shape of an Event.
type Kind string

const (
	KindInitialDir  Kind = "initial_dir"
	KindInitialFile Kind = "initial_file"
	KindCreated     Kind = "created"
	KindModified    Kind = "modified"
	KindAppended    Kind = "appended"
	KindTruncated   Kind = "truncated"
	KindDeleted     Kind = "deleted"
	KindMoved       Kind = "moved"
)

// OperationData carries the variant-specific fields for initial files,
// appends, and truncations. Only the fields for the Event's own kind are
// populated (Mtime and Atime, AppendSize, or NewSize); the rest are nil.
type OperationData struct {
	// Mtime and Atime are set together on initial_file events.
	Mtime *float64 `json:"mtime,omitempty"`
	Atime *float64 `json:"atime,omitempty"`

	// AppendSize is set on appended events.
	AppendSize *int64 `json:"append_size,omitempty"`

	// NewSize is set on truncated events.
	NewSize *int64 `json:"new_size,omitempty"`
}

// Event is the atomic unit of a recording's log. Fields absent for a
// given Kind are left at their zero value and omitted from JSON.
type Event struct {
	Timestamp float64 `json:"timestamp"`
	Type      Kind    `json:"event_type"`

	SrcPath  string `json:"src_path"`
	DestPath string `json:"dest_path,omitempty"`

	IsDirectory bool `json:"is_directory"`

	Content *string `json:"content,omitempty"`

	Size *int64 `json:"size,omitempty"`

	// ContentHash is a SHA-256 hex digest, or the unreadable_{size}_{mtime}
	// sentinel documented in hashing.Sentinel.
	ContentHash string `json:"content_hash,omitempty"`

	BinaryChunkID string `json:"binary_chunk_id,omitempty"`

	OperationData *OperationData `json:"operation_data,omitempty"`

	FilePosition *int64 `json:"file_position,omitempty"`

	IsPlaceholder bool `json:"is_placeholder,omitempty"`
}

// Validate checks the mutual-exclusion invariants from the spec. The
// recorder calls it on every event before appending it to the log;
// events decoded from an archive are not validated.
func (e Event) Validate() error {
	if e.Content != nil && e.BinaryChunkID != "" {
		return fmt.Errorf("event %s %q: content and binary_chunk_id both set", e.Type, e.SrcPath)
	}
	if e.DestPath != "" && e.Type != KindMoved {
		return fmt.Errorf("event %s %q: dest_path set on non-moved event", e.Type, e.SrcPath)
	}
	if e.FilePosition != nil && e.Type != KindAppended {
		return fmt.Errorf("event %s %q: file_position set on non-appended event", e.Type, e.SrcPath)
	}
	if e.IsDirectory && (e.Content != nil || e.ContentHash != "" || e.BinaryChunkID != "") {
		return fmt.Errorf("event %s %q: directory event carries content fields", e.Type, e.SrcPath)
	}
	return nil
}

func i64(v int64) *int64     { return &v }
func f64(v float64) *float64 { return &v }

// NewInitialDir builds an initial_dir snapshot event for a directory
// other than the watched root itself.
func NewInitialDir(path string) Event {
	return Event{Type: KindInitialDir, SrcPath: path, IsDirectory: true}
}

// InitialFileParams groups the fields needed to build an initial_file
// event. Exactly one of Content/ChunkID should be set, unless
// Placeholder is true, in which case neither is.
type InitialFileParams struct {
	Path          string
	Size          int64
	Hash          string
	Content       *string
	ChunkID       string
	Placeholder   bool
	Mtime, Atime  float64
}

// NewInitialFile builds an initial_file snapshot event.
func NewInitialFile(p InitialFileParams) Event {
	return Event{
		Type:          KindInitialFile,
		SrcPath:       p.Path,
		Size:          i64(p.Size),
		ContentHash:   p.Hash,
		Content:       p.Content,
		BinaryChunkID: p.ChunkID,
		IsPlaceholder: p.Placeholder,
		OperationData: &OperationData{Mtime: f64(p.Mtime), Atime: f64(p.Atime)},
	}
}

// NewDirCreated builds a created event for a new directory.
func NewDirCreated(path string) Event {
	return Event{Type: KindCreated, SrcPath: path, IsDirectory: true}
}

// FileContentParams groups the capture outcome shared by created and
// modified events.
type FileContentParams struct {
	Path        string
	Size        int64
	Hash        string
	Content     *string
	ChunkID     string
	Placeholder bool
}

// NewCreated builds a created event for a new file.
func NewCreated(p FileContentParams) Event {
	return Event{
		Type:          KindCreated,
		SrcPath:       p.Path,
		Size:          i64(p.Size),
		ContentHash:   p.Hash,
		Content:       p.Content,
		BinaryChunkID: p.ChunkID,
		IsPlaceholder: p.Placeholder,
	}
}

// NewModified builds a modified event for a full rewrite of an existing
// file (same size, different hash, or an append whose new tail could not
// be read).
func NewModified(p FileContentParams) Event {
	return Event{
		Type:          KindModified,
		SrcPath:       p.Path,
		Size:          i64(p.Size),
		ContentHash:   p.Hash,
		Content:       p.Content,
		BinaryChunkID: p.ChunkID,
		IsPlaceholder: p.Placeholder,
	}
}

// AppendedParams groups the fields needed to build an appended event.
type AppendedParams struct {
	Path         string
	FilePosition int64
	AppendSize   int64
	NewSize      int64
	NewHash      string
	Content      *string
	ChunkID      string
}

// NewAppended builds an appended event carrying only the suffix bytes
// written since the previous known size.
func NewAppended(p AppendedParams) Event {
	return Event{
		Type:          KindAppended,
		SrcPath:       p.Path,
		Size:          i64(p.NewSize),
		ContentHash:   p.NewHash,
		Content:       p.Content,
		BinaryChunkID: p.ChunkID,
		FilePosition:  i64(p.FilePosition),
		OperationData: &OperationData{AppendSize: i64(p.AppendSize)},
	}
}

// NewTruncated builds a truncated event. No content payload is captured,
// but the post-truncation hash is recorded so replay can verify the
// truncated target, matching the original tool's content_hash on
// truncation events.
func NewTruncated(path string, newSize int64, newHash string) Event {
	return Event{
		Type:          KindTruncated,
		SrcPath:       path,
		Size:          i64(newSize),
		ContentHash:   newHash,
		OperationData: &OperationData{NewSize: i64(newSize)},
	}
}

// NewDeleted builds a deleted event for a file or directory.
func NewDeleted(path string, isDir bool) Event {
	return Event{Type: KindDeleted, SrcPath: path, IsDirectory: isDir}
}

// NewMoved builds a moved event. Both paths are POSIX-relative.
func NewMoved(src, dest string, isDir bool) Event {
	return Event{Type: KindMoved, SrcPath: src, DestPath: dest, IsDirectory: isDir}
}
