// Command fsrecorder records filesystem activity under a directory into
// a portable archive, and replays that archive into a fresh directory
// at a configurable pace.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
//   - --log-level component=level flags drive the filter handler's
//     per-component overrides at startup
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fsrecorder/internal/logging"
)

var levelNames = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering is done by ComponentFilterHandler below
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	var logLevels map[string]string

	rootCmd := &cobra.Command{
		Use:   "fsrecorder",
		Short: "Record and replay filesystem activity",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyLogLevels(filterHandler, logger, logLevels)
		},
	}
	rootCmd.PersistentFlags().StringToStringVar(&logLevels, "log-level", nil,
		"per-component log level override, e.g. --log-level recorder=debug,detector=default")

	rootCmd.AddCommand(
		newRecordCmd(logger),
		newReplayCmd(logger),
		newInfoCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyLogLevels sets or clears per-component filter levels from the
// --log-level flag. "default" clears a component's override instead of
// setting one, handing it back to the handler's default level.
func applyLogLevels(filter *logging.ComponentFilterHandler, logger *slog.Logger, overrides map[string]string) error {
	logger.Debug("logging configured", "default_level", filter.DefaultLevel())
	for component, raw := range overrides {
		if strings.EqualFold(raw, "default") {
			filter.ClearLevel(component)
			logger.Debug("log level override cleared", "component", component, "level", filter.Level(component))
			continue
		}
		level, ok := levelNames[strings.ToLower(raw)]
		if !ok {
			return fmt.Errorf("--log-level %s=%s: unknown level (want debug, info, warn, error, or default)", component, raw)
		}
		filter.SetLevel(component, level)
		logger.Debug("log level override applied", "component", component, "level", filter.Level(component))
	}
	return nil
}
