package pathnorm

import (
	"path/filepath"
	"testing"
)

func TestToPosix(t *testing.T) {
	root := filepath.FromSlash("/watch/root")
	target := filepath.FromSlash("/watch/root/sub/dir/file.txt")

	got, err := ToPosix(root, target)
	if err != nil {
		t.Fatalf("ToPosix: %v", err)
	}
	if got != "sub/dir/file.txt" {
		t.Errorf("got %q, want sub/dir/file.txt", got)
	}
}

func TestToPosix_RootItself(t *testing.T) {
	root := filepath.FromSlash("/watch/root")
	got, err := ToPosix(root, root)
	if err != nil {
		t.Fatalf("ToPosix: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty string for root itself", got)
	}
}

func TestFromPosix(t *testing.T) {
	root := filepath.FromSlash("/target")
	got, err := FromPosix(root, "sub/dir/file.txt")
	if err != nil {
		t.Fatalf("FromPosix: %v", err)
	}
	want := filepath.Join(root, "sub", "dir", "file.txt")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFromPosix_RootItself(t *testing.T) {
	root := filepath.FromSlash("/target")
	got, err := FromPosix(root, ".")
	if err != nil {
		t.Fatalf("FromPosix: %v", err)
	}
	if got != root {
		t.Errorf("got %q, want %q", got, root)
	}
}

func TestFromPosix_RejectsEscapingPaths(t *testing.T) {
	root := filepath.FromSlash("/target")
	cases := []string{
		"../outside.txt",
		"sub/../../outside.txt",
		"/abs/path",
		"a\\b.txt",
		"C:/windows/system32",
	}
	for _, p := range cases {
		if _, err := FromPosix(root, p); err == nil {
			t.Errorf("FromPosix(%q) = nil error, want rejection", p)
		}
	}
}

func TestFromPosix_CleansRedundantSegments(t *testing.T) {
	root := filepath.FromSlash("/target")
	got, err := FromPosix(root, "sub/./dir/../dir/file.txt")
	if err != nil {
		t.Fatalf("FromPosix: %v", err)
	}
	want := filepath.Join(root, "sub", "dir", "file.txt")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]bool{
		"a/b/c.txt":   true,
		"a\\b\\c.txt": false,
		"/abs/path":   false,
		"C:/windows":  false,
	}
	for p, want := range cases {
		if got := Validate(p); got != want {
			t.Errorf("Validate(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestClean(t *testing.T) {
	if got := Clean("sub/./dir/../dir/file.txt"); got != "sub/dir/file.txt" {
		t.Errorf("Clean = %q, want sub/dir/file.txt", got)
	}
}
