package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	res := HashFile(p)
	if res.Unreadable {
		t.Fatal("expected readable file")
	}
	if res.Size != 5 {
		t.Errorf("size = %d, want 5", res.Size)
	}
	sum := sha256.Sum256([]byte("hello"))
	want := hex.EncodeToString(sum[:])
	if res.Hash != want {
		t.Errorf("hash = %s, want %s", res.Hash, want)
	}
}

func TestHashFile_Missing(t *testing.T) {
	res := HashFile(filepath.Join(t.TempDir(), "missing.txt"))
	if !res.Unreadable {
		t.Fatal("expected unreadable result for missing file")
	}
	if !IsUnreadable(res.Hash) {
		t.Errorf("hash %q does not carry unreadable sentinel", res.Hash)
	}
}

func TestSentinelFormat(t *testing.T) {
	got := Sentinel(1024, 1700000000)
	want := "unreadable_1024_1700000000"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !IsUnreadable(got) {
		t.Error("sentinel not recognized as unreadable")
	}
}
