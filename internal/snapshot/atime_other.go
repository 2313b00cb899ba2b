//go:build !linux && !darwin

package snapshot

import "os"

// platformAtime has no portable source on platforms without a POSIX
// stat_t (e.g. Windows); callers fall back to mtime for both fields.
func platformAtime(info os.FileInfo) (float64, bool) {
	return 0, false
}
