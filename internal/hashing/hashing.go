// Package hashing implements the Hasher (spec §4.3): a streaming
// SHA-256 over a file's full current contents, with a sentinel value for
// files that cannot be read.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const blockSize = 4096

// unreadablePrefix marks a sentinel hash produced when a file could not
// be read at capture time. Consumers must recognize this prefix and
// never attempt to verify it during replay (spec §4.3, §8 invariant 8).
const unreadablePrefix = "unreadable_"

// Sentinel builds the unreadable_{size}_{mtime} hash string for a file
// whose stat succeeded but whose bytes could not be read.
func Sentinel(size int64, mtimeUnix float64) string {
	return fmt.Sprintf("%s%d_%d", unreadablePrefix, size, int64(mtimeUnix))
}

// IsUnreadable reports whether hash is an unreadable sentinel.
func IsUnreadable(hash string) bool {
	return strings.HasPrefix(hash, unreadablePrefix)
}

// Result is the outcome of hashing a file.
type Result struct {
	Hash       string
	Size       int64
	Unreadable bool
}

// HashFile streams path in 4 KiB blocks and returns its SHA-256 hex
// digest and size. If the file cannot be opened or read, it returns a
// Result carrying the unreadable sentinel instead of an error — the
// caller is expected to record the path in an unreadable-files report
// and continue, per spec §7.
func HashFile(path string) Result {
	info, statErr := os.Stat(path)
	if statErr != nil {
		// Can't even stat it; fall back to zero size/mtime in the sentinel.
		return Result{Hash: Sentinel(0, 0), Unreadable: true}
	}

	f, err := os.Open(path) //nolint:gosec // path comes from a recursive walk of a user-chosen directory
	if err != nil {
		return Result{Hash: Sentinel(info.Size(), float64(info.ModTime().Unix())), Size: info.Size(), Unreadable: true}
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Result{Hash: Sentinel(info.Size(), float64(info.ModTime().Unix())), Size: info.Size(), Unreadable: true}
	}

	return Result{Hash: hex.EncodeToString(h.Sum(nil)), Size: info.Size()}
}
