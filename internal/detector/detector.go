// Package detector implements the Change Detector (spec §4.7): it
// receives raw filesystem notifications and classifies each into zero
// or one minimal Event, consulting the State Tracker rather than the
// filesystem to decide what changed.
//
// Grounded on the notifier-goroutine-into-channel pattern of the
// teacher's internal/ingester/tail package: fsnotify's own background
// thread is the "notifier"; Run is the single "handler" goroutine that
// owns the State Tracker and Chunk Store for the duration of a
// recording, per spec §5.
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"fsrecorder/internal/capture"
	"fsrecorder/internal/event"
	"fsrecorder/internal/hashing"
	"fsrecorder/internal/logging"
	"fsrecorder/internal/pathnorm"
	"fsrecorder/internal/tracker"
)

// ErrRootDisappeared is returned by Run when the watched root itself is
// removed or renamed during recording. The spec leaves this behavior
// undefined and suggests aborting; that is what we do (spec §9 Open
// Questions).
var ErrRootDisappeared = errors.New("watched root directory disappeared or was renamed")

// moveCorrelationWindow bounds how long a removal is held as a
// candidate match for a subsequent create before it is emitted as a
// plain deleted event. fsnotify delivers the old-name and new-name
// halves of a rename as two independent events with no shared token in
// its stable cross-platform API; this is the standard workaround.
const moveCorrelationWindow = 750 * time.Millisecond

const sweepInterval = 100 * time.Millisecond

// Config configures a Detector.
type Config struct {
	Root    string
	Policy  capture.Policy
	Tracker *tracker.Tracker
	Logger  *slog.Logger
}

// Detector watches Root recursively and emits classified Events.
type Detector struct {
	root    string
	policy  capture.Policy
	tracker *tracker.Tracker
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	dirs    map[string]bool // posix path -> known directory

	pending map[string]pendingRemoval // posix path -> removal awaiting a match
}

type pendingRemoval struct {
	path  string
	isDir bool
	size  int64
	hash  string
	at    time.Time
}

// New creates a Detector and establishes recursive watches under root.
func New(cfg Config) (*Detector, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	d := &Detector{
		root:    cfg.Root,
		policy:  cfg.Policy,
		tracker: cfg.Tracker,
		logger:  logging.Default(cfg.Logger).With("component", "detector"),
		watcher: watcher,
		dirs:    make(map[string]bool),
		pending: make(map[string]pendingRemoval),
	}

	if err := d.watchRecursive(cfg.Root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.Root, err)
	}
	return d, nil
}

// Close releases the underlying fsnotify watcher.
func (d *Detector) Close() error {
	return d.watcher.Close()
}

func (d *Detector) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, de os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !de.IsDir() {
			return nil
		}
		if err := d.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if path != d.root {
			rel, _ := pathnorm.ToPosix(d.root, path)
			d.dirs[rel] = true
		}
		return nil
	})
}

// Run processes filesystem notifications until ctx is cancelled,
// sending classified events to out. It returns nil on clean shutdown
// and ErrRootDisappeared (or a wrapped I/O error) on a fatal condition.
func (d *Detector) Run(ctx context.Context, out chan<- event.Event) error {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-d.watcher.Events:
			if !ok {
				return nil
			}
			if err := d.handle(ev, out); err != nil {
				return err
			}

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return nil
			}
			d.logger.Warn("fsnotify error", "error", err)

		case now := <-sweep.C:
			d.flushStalePending(now, out)
		}
	}
}

func (d *Detector) flushStalePending(now time.Time, out chan<- event.Event) {
	for path, p := range d.pending {
		if now.Sub(p.at) >= moveCorrelationWindow {
			delete(d.pending, path)
			out <- event.NewDeleted(path, p.isDir)
		}
	}
}

func (d *Detector) handle(ev fsnotify.Event, out chan<- event.Event) error {
	rel, err := pathnorm.ToPosix(d.root, ev.Name)
	if err != nil {
		return nil //nolint:nilerr // path outside root (e.g. a watch on a now-gone parent); ignore
	}
	if rel == "" {
		// The notification is about the watched root itself.
		if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
			return ErrRootDisappeared
		}
		return nil
	}

	switch {
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		d.handleRemoval(rel, out)
	case ev.Op.Has(fsnotify.Create):
		return d.handleCreate(rel, ev.Name, out)
	case ev.Op.Has(fsnotify.Write):
		d.handleWrite(rel, ev.Name, out)
	}
	return nil
}

// handleRemoval records a pending removal. A later create that matches
// it is turned into a moved event by handleCreate; one still unmatched
// after moveCorrelationWindow is emitted as deleted by flushStalePending.
func (d *Detector) handleRemoval(rel string, out chan<- event.Event) {
	if d.dirs[rel] {
		delete(d.dirs, rel)
		d.pending[rel] = pendingRemoval{path: rel, isDir: true, at: time.Now()}
		return
	}

	entry, ok := d.tracker.Get(rel)
	if !ok {
		// Unknown path disappearing (e.g. a notification for a file we
		// never classified); nothing to correlate or report.
		return
	}
	d.tracker.Delete(rel)
	d.pending[rel] = pendingRemoval{path: rel, isDir: false, size: entry.Size, hash: entry.Hash, at: time.Now()}
}

func (d *Detector) handleCreate(rel, nativePath string, out chan<- event.Event) error {
	info, err := os.Stat(nativePath)
	if err != nil {
		// Target no longer exists by the time we got here; drop it per
		// spec §4.7 ("if the notification's target does not exist on
		// disk at handling time, drop it").
		return nil
	}

	if info.IsDir() {
		d.dirs[rel] = true
		if moved := d.matchPendingDir(); moved != "" {
			out <- event.NewMoved(moved, rel, true)
		} else {
			out <- event.NewDirCreated(rel)
		}
		if err := d.watcher.Add(nativePath); err != nil {
			d.logger.Warn("failed to watch new directory", "path", rel, "error", err)
		}
		// A directory that appears atomically (mkdir + populate, or a
		// move-in from outside the tree) may already contain files we
		// never saw individually; walk it to pick those up as creations.
		return d.snapshotNewDir(nativePath, out)
	}

	hr := hashing.HashFile(nativePath)
	if hr.Unreadable {
		d.tracker.Set(rel, tracker.Entry{})
		out <- event.NewCreated(event.FileContentParams{Path: rel, Hash: hr.Hash})
		return nil
	}

	if moved := d.matchPendingFile(hr.Size, hr.Hash); moved != "" {
		d.tracker.Set(rel, tracker.Entry{Size: hr.Size, Hash: hr.Hash})
		out <- event.NewMoved(moved, rel, false)
		return nil
	}

	outc, err := d.policy.CaptureFile(nativePath)
	if err != nil {
		return fmt.Errorf("capture %s: %w", rel, err)
	}
	d.tracker.Set(rel, tracker.Entry{Size: outc.Size, Hash: outc.Hash})
	out <- event.NewCreated(event.FileContentParams{
		Path: rel, Size: outc.Size, Hash: outc.Hash, Content: outc.Content, ChunkID: outc.ChunkID, Placeholder: outc.Placeholder,
	})
	return nil
}

func (d *Detector) snapshotNewDir(nativeDir string, out chan<- event.Event) error {
	return filepath.WalkDir(nativeDir, func(path string, de os.DirEntry, err error) error {
		if err != nil || path == nativeDir {
			return err //nolint:nilerr // err is nil on the path==nativeDir branch
		}
		rel, rerr := pathnorm.ToPosix(d.root, path)
		if rerr != nil {
			return nil //nolint:nilerr
		}
		if de.IsDir() {
			d.dirs[rel] = true
			if err := d.watcher.Add(path); err != nil {
				d.logger.Warn("failed to watch directory", "path", rel, "error", err)
			}
			out <- event.NewDirCreated(rel)
			return nil
		}
		outc, cerr := d.policy.CaptureFile(path)
		if cerr != nil {
			return fmt.Errorf("capture %s: %w", rel, cerr)
		}
		d.tracker.Set(rel, tracker.Entry{Size: outc.Size, Hash: outc.Hash})
		out <- event.NewCreated(event.FileContentParams{
			Path: rel, Size: outc.Size, Hash: outc.Hash, Content: outc.Content, ChunkID: outc.ChunkID, Placeholder: outc.Placeholder,
		})
		return nil
	})
}

func (d *Detector) matchPendingDir() string {
	for path, p := range d.pending {
		if p.isDir {
			delete(d.pending, path)
			return path
		}
	}
	return ""
}

func (d *Detector) matchPendingFile(size int64, hash string) string {
	for path, p := range d.pending {
		if !p.isDir && p.size == size && p.hash == hash {
			delete(d.pending, path)
			return path
		}
	}
	return ""
}

// handleWrite classifies an in-place modification against the State
// Tracker, per the decision tree in spec §4.7.
func (d *Detector) handleWrite(rel, nativePath string, out chan<- event.Event) {
	if d.dirs[rel] {
		return // directory writes carry no content in this model
	}

	info, err := os.Stat(nativePath)
	if err != nil {
		return // gone by the time we handled it; drop per spec §4.7
	}

	old, known := d.tracker.Get(rel)
	if !known {
		outc, cerr := d.policy.CaptureFile(nativePath)
		if cerr != nil {
			d.logger.Warn("capture failed", "path", rel, "error", cerr)
			return
		}
		d.tracker.Set(rel, tracker.Entry{Size: outc.Size, Hash: outc.Hash})
		out <- event.NewCreated(event.FileContentParams{
			Path: rel, Size: outc.Size, Hash: outc.Hash, Content: outc.Content, ChunkID: outc.ChunkID, Placeholder: outc.Placeholder,
		})
		return
	}

	newSize := info.Size()

	switch {
	case newSize > old.Size:
		d.handleAppend(rel, nativePath, old, newSize, out)
	case newSize < old.Size:
		hr := hashing.HashFile(nativePath)
		d.tracker.Set(rel, tracker.Entry{Size: newSize, Hash: hr.Hash})
		out <- event.NewTruncated(rel, newSize, hr.Hash)
	default:
		hr := hashing.HashFile(nativePath)
		if hr.Unreadable {
			d.tracker.Set(rel, tracker.Entry{})
			out <- event.NewModified(event.FileContentParams{Path: rel, Hash: hr.Hash})
			return
		}
		if hr.Hash == old.Hash {
			return // no-op, per spec §4.7 and Open Questions
		}
		outc, cerr := d.policy.CaptureFile(nativePath)
		if cerr != nil {
			d.logger.Warn("capture failed", "path", rel, "error", cerr)
			return
		}
		d.tracker.Set(rel, tracker.Entry{Size: outc.Size, Hash: outc.Hash})
		out <- event.NewModified(event.FileContentParams{
			Path: rel, Size: outc.Size, Hash: outc.Hash, Content: outc.Content, ChunkID: outc.ChunkID, Placeholder: outc.Placeholder,
		})
	}
}

func (d *Detector) handleAppend(rel, nativePath string, old tracker.Entry, newSize int64, out chan<- event.Event) {
	f, err := os.Open(nativePath) //nolint:gosec // nativePath is derived from a notification inside the watched root
	if err != nil {
		d.logger.Warn("open for append read failed, falling back to full capture", "path", rel, "error", err)
		d.fullRecapture(rel, nativePath, out)
		return
	}
	defer f.Close()

	suffix := make([]byte, newSize-old.Size)
	if _, err := f.ReadAt(suffix, old.Size); err != nil {
		d.logger.Warn("tail read failed, falling back to full modification", "path", rel, "error", err)
		d.fullRecapture(rel, nativePath, out)
		return
	}

	content, chunkID, err := d.policy.CaptureAppendSuffix(suffix)
	if err != nil {
		d.logger.Warn("append capture failed", "path", rel, "error", err)
		return
	}

	hr := hashing.HashFile(nativePath)
	newHash := hr.Hash
	if hr.Unreadable {
		newHash = old.Hash
	}
	d.tracker.Set(rel, tracker.Entry{Size: newSize, Hash: newHash})

	out <- event.NewAppended(event.AppendedParams{
		Path: rel, FilePosition: old.Size, AppendSize: newSize - old.Size, NewSize: newSize,
		NewHash: newHash, Content: content, ChunkID: chunkID,
	})
}

func (d *Detector) fullRecapture(rel, nativePath string, out chan<- event.Event) {
	outc, err := d.policy.CaptureFile(nativePath)
	if err != nil {
		d.logger.Warn("capture failed", "path", rel, "error", err)
		return
	}
	d.tracker.Set(rel, tracker.Entry{Size: outc.Size, Hash: outc.Hash})
	out <- event.NewModified(event.FileContentParams{
		Path: rel, Size: outc.Size, Hash: outc.Hash, Content: outc.Content, ChunkID: outc.ChunkID, Placeholder: outc.Placeholder,
	})
}

