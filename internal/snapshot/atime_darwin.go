//go:build darwin

package snapshot

import "syscall"

func atimeSeconds(stat *syscall.Stat_t) int64 {
	return stat.Atimespec.Sec
}
