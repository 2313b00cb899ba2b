// Package pathnorm converts platform paths to and from the stable
// POSIX-relative form stored in every Event, so archives are portable
// between operating systems (spec §4.1).
package pathnorm

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// ToPosix makes target relative to root, then rewrites it as a
// forward-slash path with no leading slash. root and target must both be
// platform-native paths; target must lie within root.
func ToPosix(root, target string) (string, error) {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "." {
		return "", nil
	}
	return rel, nil
}

// FromPosix re-joins a POSIX-relative path onto root using the target
// platform's separator. It rejects any posixPath that fails Validate or
// that, once Clean-ed, still escapes root (a leading ".." segment) —
// an archive's src_path/dest_path is untrusted input, and a record
// crafted or corrupted to read "../../etc/passwd" must not resolve
// outside the replay target.
func FromPosix(root, posixPath string) (string, error) {
	if !Validate(posixPath) {
		return "", fmt.Errorf("pathnorm: %q is not a portable relative path", posixPath)
	}
	cleaned := Clean(posixPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("pathnorm: %q escapes the target root", posixPath)
	}
	if cleaned == "." {
		return root, nil
	}
	parts := strings.Split(cleaned, "/")
	segs := make([]string, 0, len(parts)+1)
	segs = append(segs, root)
	segs = append(segs, parts...)
	return filepath.Join(segs...), nil
}

// Validate reports whether p satisfies the path-portability invariant:
// no backslash, no drive prefix, no leading slash.
func Validate(p string) bool {
	if strings.Contains(p, "\\") {
		return false
	}
	if strings.HasPrefix(p, "/") {
		return false
	}
	if len(p) >= 2 && p[1] == ':' {
		return false // drive prefix, e.g. "C:"
	}
	return true
}

// Clean normalizes a POSIX-relative path (collapsing "./", "../" where
// safe) without touching the filesystem.
func Clean(p string) string {
	return path.Clean(p)
}
