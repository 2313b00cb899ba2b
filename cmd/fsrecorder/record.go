package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fsrecorder/internal/recorder"
)

func newRecordCmd(logger *slog.Logger) *cobra.Command {
	var (
		outputPath          string
		skipBinaryContent   bool
		forceTextExtensions []string
		forceBinaryExts     []string
	)

	cmd := &cobra.Command{
		Use:   "record <directory>",
		Short: "Record filesystem activity under a directory into an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return fmt.Errorf("--output is required")
			}
			return runRecord(cmd.Context(), logger, args[0], outputPath, skipBinaryContent, forceTextExtensions, forceBinaryExts)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "archive output path")
	cmd.Flags().BoolVar(&skipBinaryContent, "skip-binary-content", true, "capture only size for binary files instead of their bytes")
	cmd.Flags().StringSliceVar(&forceTextExtensions, "force-text-extensions", nil, "extensions always classified as text")
	cmd.Flags().StringSliceVar(&forceBinaryExts, "force-binary-extensions", nil, "extensions always classified as binary")

	return cmd
}

func runRecord(ctx context.Context, logger *slog.Logger, root, outputPath string, skipBinary bool, forceText, forceBinary []string) error {
	rec, err := recorder.New(recorder.Options{
		Root:                  root,
		SkipBinaryContent:     skipBinary,
		ForceTextExtensions:   forceText,
		ForceBinaryExtensions: forceBinary,
		Logger:                logger,
	})
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rec.Start(runCtx); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	logger.Info("recording, press ctrl-c to stop", "root", root, "output", outputPath)
	<-runCtx.Done()

	report, err := rec.Stop(outputPath)
	if err != nil {
		return fmt.Errorf("seal archive: %w", err)
	}

	fmt.Printf("recorded %d events to %s\n", report.TotalEvents, outputPath)
	if len(report.Unreadable) > 0 {
		fmt.Printf("%d file(s) were unreadable during capture:\n", len(report.Unreadable))
		for _, p := range report.Unreadable {
			fmt.Printf("  %s\n", p)
		}
	}
	return nil
}
