// Package snapshot implements the Snapshot Walker (spec §4.6): the
// recursive, depth-first traversal that seeds a recording's log with
// one initial_dir event per subdirectory and one initial_file event per
// regular file.
package snapshot

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fsrecorder/internal/capture"
	"fsrecorder/internal/event"
	"fsrecorder/internal/logging"
	"fsrecorder/internal/pathnorm"
	"fsrecorder/internal/tracker"
)

// Report summarizes files the walker could not read.
type Report struct {
	Unreadable []string
}

// Walk traverses root depth-first, emitting initial_dir events for every
// subdirectory (never for root itself) and initial_file events for
// every regular file, seeding tr with each file's state as it goes.
// Ordering of the returned events is traversal order; spec §4.6 notes
// that any order is correct since replay creates directories
// parent-first via recursive mkdir.
func Walk(root string, policy capture.Policy, tr *tracker.Tracker, logger *slog.Logger) ([]event.Event, Report, error) {
	logger = logging.Default(logger).With("component", "snapshot")

	var events []event.Event
	var report Report

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if path == root {
			return nil
		}

		rel, err := pathnorm.ToPosix(root, path)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", path, err)
		}

		if d.IsDir() {
			events = append(events, event.NewInitialDir(rel))
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks, sockets, devices: not part of the spec's data
			// model. Skip rather than misrepresent as a regular file.
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("stat failed during snapshot", "path", rel, "error", err)
			report.Unreadable = append(report.Unreadable, rel)
			return nil
		}

		out, err := policy.CaptureFile(path)
		if err != nil {
			return fmt.Errorf("capture %s: %w", path, err)
		}
		if out.Unreadable {
			logger.Warn("file unreadable during snapshot", "path", rel)
			report.Unreadable = append(report.Unreadable, rel)
		}

		mtime := float64(info.ModTime().Unix())
		atime := mtime
		if at, ok := platformAtime(info); ok {
			atime = at
		}

		events = append(events, event.NewInitialFile(event.InitialFileParams{
			Path:        rel,
			Size:        out.Size,
			Hash:        out.Hash,
			Content:     out.Content,
			ChunkID:     out.ChunkID,
			Placeholder: out.Placeholder,
			Mtime:       mtime,
			Atime:       atime,
		}))

		if !out.Unreadable {
			tr.Set(rel, tracker.Entry{Size: out.Size, Hash: out.Hash})
		}
		return nil
	})
	if err != nil {
		return nil, report, err
	}
	return events, report, nil
}
