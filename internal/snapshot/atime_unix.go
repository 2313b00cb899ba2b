//go:build linux || darwin

package snapshot

import (
	"os"
	"syscall"
)

// platformAtime extracts the last-access time from the platform stat_t
// embedded in a FileInfo's Sys(), used to populate operation_data.atime
// on initial_file events (spec §4.6).
func platformAtime(info os.FileInfo) (float64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return float64(atimeSeconds(stat)), true
}
