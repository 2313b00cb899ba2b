package capture

import (
	"os"
	"path/filepath"
	"testing"

	"fsrecorder/internal/chunkstore"
	"fsrecorder/internal/classify"
)

func newPolicy(t *testing.T, skipBinary bool) Policy {
	t.Helper()
	store, err := chunkstore.Open("fsrecorder_test_", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return Policy{Classifier: classify.Classifier{}, SkipBinary: skipBinary, Store: store}
}

func TestCaptureFile_SmallText(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	os.WriteFile(p, []byte("hello"), 0o600)

	out, err := newPolicy(t, false).CaptureFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if out.Content == nil || *out.Content != "hello" {
		t.Fatalf("content = %v, want hello", out.Content)
	}
	if out.ChunkID != "" || out.Placeholder {
		t.Fatalf("unexpected chunk/placeholder: %+v", out)
	}
}

func TestCaptureFile_BinarySkipped(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	os.WriteFile(p, []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}, 0o600)

	out, err := newPolicy(t, true).CaptureFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Placeholder {
		t.Fatal("expected placeholder")
	}
	if out.Content != nil || out.ChunkID != "" {
		t.Fatalf("placeholder should carry no content/chunk: %+v", out)
	}
	if out.Size != 8 {
		t.Fatalf("size = %d, want 8", out.Size)
	}
}

func TestCaptureFile_BinaryNotSkipped_GoesToChunk(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	data := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	os.WriteFile(p, data, 0o600)

	pol := newPolicy(t, false)
	out, err := pol.CaptureFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if out.ChunkID == "" {
		t.Fatal("expected a chunk id")
	}
	got, err := pol.Store.Get(out.ChunkID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Fatalf("chunk content mismatch")
	}
}

func TestCaptureFile_LargeTextGoesToChunk(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "big.txt")
	data := make([]byte, InlineTextLimit+10)
	for i := range data {
		data[i] = 'x'
	}
	os.WriteFile(p, data, 0o600)

	pol := newPolicy(t, false)
	out, err := pol.CaptureFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if out.Content != nil {
		t.Fatal("large text file should not be inlined")
	}
	if out.ChunkID == "" {
		t.Fatal("expected a chunk id for large text file")
	}
}

func TestCaptureAppendSuffix_ValidUTF8(t *testing.T) {
	pol := newPolicy(t, false)
	content, chunkID, err := pol.CaptureAppendSuffix([]byte(" world"))
	if err != nil {
		t.Fatal(err)
	}
	if content == nil || *content != " world" || chunkID != "" {
		t.Fatalf("content=%v chunkID=%v", content, chunkID)
	}
}

func TestCaptureAppendSuffix_InvalidUTF8GoesToChunk(t *testing.T) {
	pol := newPolicy(t, false)
	invalid := []byte{0xff, 0xfe, 0x00}
	content, chunkID, err := pol.CaptureAppendSuffix(invalid)
	if err != nil {
		t.Fatal(err)
	}
	if content != nil || chunkID == "" {
		t.Fatalf("content=%v chunkID=%v", content, chunkID)
	}
}
