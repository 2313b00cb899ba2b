package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fsrecorder/internal/archive"
	"fsrecorder/internal/event"
)

func newInfoCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "info <archive>",
		Short: "Print metadata and event counts for an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
}

func runInfo(archivePath string) error {
	manifest, err := archive.OpenManifestOnly(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	m := manifest.Metadata
	fmt.Printf("recorded_at:  %s\n", m.RecordedAt)
	fmt.Printf("watch_dir:    %s\n", m.WatchDir)
	fmt.Printf("version:      %s\n", m.Version)
	fmt.Printf("platform:     %s\n", m.Platform)
	fmt.Printf("total_events: %d\n", m.TotalEvents)

	counts := make(map[event.Kind]int)
	for _, e := range manifest.Events {
		counts[e.Type]++
	}
	fmt.Println("event breakdown:")
	for _, k := range []event.Kind{
		event.KindInitialDir, event.KindInitialFile, event.KindCreated,
		event.KindModified, event.KindAppended, event.KindTruncated,
		event.KindDeleted, event.KindMoved,
	} {
		if n := counts[k]; n > 0 {
			fmt.Printf("  %-14s %d\n", k, n)
		}
	}
	return nil
}
