// Package replay implements the Replay Engine (spec §4.9, §4.10): a
// sequential, idempotent application of a recorded event log to a fresh
// target directory, paced by a Time Policy and followed by optional
// hash verification.
//
// Grounded on the sequential, locally-recovered apply loop of the
// teacher's internal/chunk/file append path and the "log, don't abort"
// error style of internal/orchestrator/lifecycle.go's processMessage.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fsrecorder/internal/archive"
	"fsrecorder/internal/event"
	"fsrecorder/internal/hashing"
	"fsrecorder/internal/logging"
	"fsrecorder/internal/pathnorm"
	"fsrecorder/internal/timepolicy"
)

// ErrMissingTarget is recorded (not returned) when a modification,
// append, or truncation names a path that does not exist on disk.
var ErrMissingTarget = errors.New("replay: target does not exist")

// maxHashMismatches bounds how many mismatch details the Report keeps;
// beyond this the count is tracked in Overflow instead.
const maxHashMismatches = 20

// HashMismatch is one verification failure collected during replay.
type HashMismatch struct {
	Path     string
	Expected string
	Actual   string
}

// Report summarizes a completed replay run.
type Report struct {
	EventsApplied  int
	EventsSkipped  int
	Warnings       []string
	HashMismatches []HashMismatch
	Overflow       int
}

// Options configures a replay run.
type Options struct {
	// TimePolicy paces the gap between consecutive events. Defaults to
	// timepolicy.Fast().
	TimePolicy timepolicy.Policy

	// Verify, when true, recomputes and compares content hashes after
	// applying initial_file, created, modified, appended, and truncated
	// file events.
	Verify bool

	// SkipUnreadable, when true, skips events whose hash carries the
	// unreadable_ sentinel entirely instead of writing a zero-byte file.
	SkipUnreadable bool

	Logger *slog.Logger
}

// Run applies every event in a to targetRoot in order, gated by the
// configured Time Policy between events. It never returns an error for
// per-event failures; those are folded into the returned Report. It
// returns an error only if targetRoot cannot be created; a structurally
// corrupt archive is already rejected by archive.Open before Run.
func Run(ctx context.Context, a *archive.Archive, targetRoot string, opts Options) (Report, error) {
	logger := logging.Default(opts.Logger).With("component", "replay")
	policy := opts.TimePolicy
	if policy == (timepolicy.Policy{}) {
		policy = timepolicy.Fast()
	}

	if err := os.MkdirAll(targetRoot, 0o750); err != nil {
		return Report{}, fmt.Errorf("create target root: %w", err)
	}

	r := &runner{
		archive: a,
		root:    targetRoot,
		opts:    opts,
		logger:  logger,
		report:  Report{},
	}

	var prevTimestamp float64
	for i, e := range a.Manifest.Events {
		if err := ctx.Err(); err != nil {
			return r.report, nil
		}

		if i > 0 {
			gap := e.Timestamp - prevTimestamp
			if d := policy.Delay(gap); d > 0 {
				sleep(ctx, d)
			}
		}
		prevTimestamp = e.Timestamp

		r.apply(e)
	}
	return r.report, nil
}

// sleep waits for d or ctx cancellation, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

type runner struct {
	archive *archive.Archive
	root    string
	opts    Options
	logger  *slog.Logger
	report  Report
}

func (r *runner) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.report.Warnings = append(r.report.Warnings, msg)
	r.logger.Warn(msg)
}

func (r *runner) apply(e event.Event) {
	if r.opts.SkipUnreadable && hashing.IsUnreadable(e.ContentHash) {
		r.report.EventsSkipped++
		return
	}

	nativePath, err := pathnorm.FromPosix(r.root, e.SrcPath)
	if err != nil {
		r.warn("%s %s: %v", e.Type, e.SrcPath, err)
		r.report.EventsSkipped++
		return
	}

	switch e.Type {
	case event.KindInitialDir:
		err = os.MkdirAll(nativePath, 0o750)
	case event.KindInitialFile:
		err = r.materializeFile(nativePath, e)
		if err == nil {
			r.setTimes(nativePath, e)
			r.verify(nativePath, e)
		}
	case event.KindCreated:
		if e.IsDirectory {
			err = os.MkdirAll(nativePath, 0o750)
		} else {
			err = r.materializeFile(nativePath, e)
			if err == nil {
				r.verify(nativePath, e)
			}
		}
	case event.KindModified:
		err = r.applyModified(nativePath, e)
	case event.KindAppended:
		err = r.applyAppend(nativePath, e)
		if err == nil {
			r.verify(nativePath, e)
		}
	case event.KindTruncated:
		err = r.applyTruncate(nativePath, e)
		if err == nil {
			r.verify(nativePath, e)
		}
	case event.KindDeleted:
		err = r.applyDelete(nativePath, e)
	case event.KindMoved:
		err = r.applyMove(nativePath, e)
	default:
		r.warn("unknown event type %q for %s, skipping", e.Type, e.SrcPath)
		r.report.EventsSkipped++
		return
	}

	if err != nil {
		r.warn("%s %s: %v", e.Type, e.SrcPath, err)
		r.report.EventsSkipped++
		return
	}
	r.report.EventsApplied++
}

func (r *runner) applyModified(nativePath string, e event.Event) error {
	if _, err := os.Stat(nativePath); err != nil {
		r.warn("modified target %s does not exist, skipping", e.SrcPath)
		return ErrMissingTarget
	}
	if err := r.materializeFile(nativePath, e); err != nil {
		return err
	}
	r.verify(nativePath, e)
	return nil
}

func (r *runner) applyAppend(nativePath string, e event.Event) error {
	info, statErr := os.Stat(nativePath)
	if statErr != nil {
		r.warn("appended target %s does not exist, skipping", e.SrcPath)
		return ErrMissingTarget
	}
	if e.FilePosition != nil && info.Size() != *e.FilePosition {
		r.warn("appended %s: current size %d does not match recorded file_position %d, appending anyway", e.SrcPath, info.Size(), *e.FilePosition)
	}

	f, err := os.OpenFile(nativePath, os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // nativePath is derived from a trusted manifest path under targetRoot
	if err != nil {
		return err
	}
	defer f.Close()

	suffix, err := r.contentBytes(e)
	if err != nil {
		return err
	}
	if _, err := f.Write(suffix); err != nil {
		return err
	}
	return nil
}

func (r *runner) applyTruncate(nativePath string, e event.Event) error {
	if _, err := os.Stat(nativePath); err != nil {
		r.warn("truncated target %s does not exist, skipping", e.SrcPath)
		return ErrMissingTarget
	}
	newSize := int64(0)
	if e.OperationData != nil && e.OperationData.NewSize != nil {
		newSize = *e.OperationData.NewSize
	} else if e.Size != nil {
		newSize = *e.Size
	}
	return os.Truncate(nativePath, newSize)
}

func (r *runner) applyDelete(nativePath string, e event.Event) error {
	if e.IsDirectory {
		return os.RemoveAll(nativePath)
	}
	err := os.Remove(nativePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil // idempotent per spec invariant 5's spirit
	}
	return err
}

func (r *runner) applyMove(nativePath string, e event.Event) error {
	destPath, err := pathnorm.FromPosix(r.root, e.DestPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return err
	}
	if _, err := os.Stat(nativePath); err != nil {
		r.warn("moved source %s does not exist, skipping", e.SrcPath)
		return ErrMissingTarget
	}
	return os.Rename(nativePath, destPath)
}

// materializeFile writes content per the spec §4.9 materialization
// policy: placeholder zero-fill, inline text, chunk bytes, size-only
// zero-fill, or an empty file, in that priority order.
func (r *runner) materializeFile(nativePath string, e event.Event) error {
	if err := os.MkdirAll(filepath.Dir(nativePath), 0o750); err != nil {
		return err
	}

	data, zeroSize, err := r.materializedBytes(e)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(nativePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // nativePath is derived from a trusted manifest path under targetRoot
	if err != nil {
		return err
	}
	defer f.Close()

	if zeroSize > 0 {
		_, err = io.CopyN(f, zeroReader{}, zeroSize)
		return err
	}
	_, err = f.Write(data)
	return err
}

// materializedBytes returns either literal bytes to write, or a byte
// count of zeros to write (zeroSize > 0), never both.
func (r *runner) materializedBytes(e event.Event) (data []byte, zeroSize int64, err error) {
	if e.IsPlaceholder {
		size := int64(0)
		if e.Size != nil {
			size = *e.Size
		}
		return nil, size, nil
	}
	if e.Content != nil {
		return []byte(*e.Content), 0, nil
	}
	if e.BinaryChunkID != "" {
		b, err := r.archive.Chunk(e.BinaryChunkID)
		if err != nil {
			return nil, 0, fmt.Errorf("resolve chunk %s: %w", e.BinaryChunkID, err)
		}
		return b, 0, nil
	}
	if e.Size != nil {
		return nil, *e.Size, nil
	}
	return nil, 0, nil
}

func (r *runner) contentBytes(e event.Event) ([]byte, error) {
	data, zeroSize, err := r.materializedBytes(e)
	if err != nil {
		return nil, err
	}
	if zeroSize > 0 {
		return make([]byte, zeroSize), nil
	}
	return data, nil
}

func (r *runner) setTimes(nativePath string, e event.Event) {
	if e.OperationData == nil || e.OperationData.Mtime == nil {
		return
	}
	mtime := unixSeconds(*e.OperationData.Mtime)
	atime := mtime
	if e.OperationData.Atime != nil {
		atime = unixSeconds(*e.OperationData.Atime)
	}
	if err := os.Chtimes(nativePath, atime, mtime); err != nil {
		r.warn("set times on %s: %v", e.SrcPath, err)
	}
}

func unixSeconds(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*float64(time.Second)))
}

func (r *runner) verify(nativePath string, e event.Event) {
	if !r.opts.Verify || e.IsDirectory || e.ContentHash == "" || hashing.IsUnreadable(e.ContentHash) {
		return
	}
	f, err := os.Open(nativePath) //nolint:gosec // nativePath is derived from a trusted manifest path under targetRoot
	if err != nil {
		r.warn("verify %s: %v", e.SrcPath, err)
		return
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		r.warn("verify %s: %v", e.SrcPath, err)
		return
	}
	actual := hex.EncodeToString(h.Sum(nil))
	if actual == e.ContentHash {
		return
	}
	if len(r.report.HashMismatches) >= maxHashMismatches {
		r.report.Overflow++
		return
	}
	r.report.HashMismatches = append(r.report.HashMismatches, HashMismatch{
		Path: e.SrcPath, Expected: e.ContentHash, Actual: actual,
	})
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
