package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"fsrecorder/internal/archive"
	"fsrecorder/internal/replay"
	"fsrecorder/internal/timepolicy"
)

func newReplayCmd(logger *slog.Logger) *cobra.Command {
	var (
		speed          float64
		maxDelaySec    float64
		burst          bool
		devMode        bool
		fastMode       bool
		exactMode      bool
		noVerify       bool
		skipUnreadable bool
	)

	cmd := &cobra.Command{
		Use:   "replay <archive> <target>",
		Short: "Replay a recorded archive into a fresh target directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := resolveTimePolicy(cmd, speed, maxDelaySec, burst, devMode, fastMode, exactMode)
			if err != nil {
				return err
			}
			return runReplay(cmd.Context(), logger, args[0], args[1], policy, !noVerify, skipUnreadable)
		},
	}

	cmd.Flags().Float64VarP(&speed, "speed", "s", 1, "custom multiplier applied to recorded gaps")
	cmd.Flags().Float64Var(&maxDelaySec, "max-delay", 0, "custom cap, in seconds, on any single inter-event delay")
	cmd.Flags().BoolVar(&burst, "burst", false, "replace every inter-event gap with a fixed 1ms yield")
	cmd.Flags().BoolVar(&devMode, "dev-mode", false, "1000x speed, 100ms cap, 1ms floor yield")
	cmd.Flags().BoolVar(&fastMode, "fast", false, "100x speed, 1s cap (default)")
	cmd.Flags().BoolVar(&exactMode, "exact", false, "replay at recorded speed, unbounded")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip content-hash verification after applying file events")
	cmd.Flags().BoolVar(&skipUnreadable, "skip-unreadable", false, "skip events whose hash is an unreadable sentinel entirely")

	return cmd
}

// resolveTimePolicy applies the mode precedence from the CLI surface:
// dev > fast > exact > explicit -s/--max-delay/--burst > default (fast).
// The three named modes are mutually exclusive.
func resolveTimePolicy(cmd *cobra.Command, speed, maxDelaySec float64, burst, devMode, fastMode, exactMode bool) (timepolicy.Policy, error) {
	named := 0
	for _, set := range []bool{devMode, fastMode, exactMode} {
		if set {
			named++
		}
	}
	if named > 1 {
		return timepolicy.Policy{}, fmt.Errorf("--dev-mode, --fast, and --exact are mutually exclusive")
	}

	switch {
	case devMode:
		return timepolicy.Dev(), nil
	case fastMode:
		return timepolicy.Fast(), nil
	case exactMode:
		return timepolicy.Exact(), nil
	}

	if burst {
		return timepolicy.Burst(), nil
	}
	if cmd.Flags().Changed("speed") || cmd.Flags().Changed("max-delay") {
		return timepolicy.Custom(speed, time.Duration(maxDelaySec*float64(time.Second))), nil
	}
	return timepolicy.Fast(), nil
}

func runReplay(ctx context.Context, logger *slog.Logger, archivePath, target string, policy timepolicy.Policy, verify, skipUnreadable bool) error {
	a, err := archive.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer a.Close()

	report, err := replay.Run(ctx, a, target, replay.Options{
		TimePolicy:     policy,
		Verify:         verify,
		SkipUnreadable: skipUnreadable,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	fmt.Printf("replayed %d event(s), skipped %d\n", report.EventsApplied, report.EventsSkipped)
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if len(report.HashMismatches) > 0 || report.Overflow > 0 {
		fmt.Printf("%d hash mismatch(es) (%d more not shown):\n", len(report.HashMismatches)+report.Overflow, report.Overflow)
		for _, m := range report.HashMismatches {
			fmt.Printf("  %s: expected %s, got %s\n", m.Path, m.Expected, m.Actual)
		}
	}
	return nil
}
