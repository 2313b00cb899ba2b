package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"fsrecorder/internal/capture"
	"fsrecorder/internal/chunkstore"
	"fsrecorder/internal/classify"
	"fsrecorder/internal/event"
	"fsrecorder/internal/tracker"
)

func TestWalk_EmitsDirsAndFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "a.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := chunkstore.Open("fsrecorder_test_", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	pol := capture.Policy{Classifier: classify.Classifier{}, Store: store}
	tr := tracker.New()

	events, report, err := Walk(root, pol, tr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Unreadable) != 0 {
		t.Fatalf("unexpected unreadable files: %v", report.Unreadable)
	}

	var sawDir, sawFile bool
	for _, e := range events {
		if e.Type == event.KindInitialDir && e.SrcPath == "sub" {
			sawDir = true
		}
		if e.Type == event.KindInitialFile && e.SrcPath == "sub/a.txt" {
			sawFile = true
			if e.Content == nil || *e.Content != "hello" {
				t.Errorf("content = %v, want hello", e.Content)
			}
			if e.Size == nil || *e.Size != 5 {
				t.Errorf("size = %v, want 5", e.Size)
			}
		}
	}
	if !sawDir || !sawFile {
		t.Fatalf("sawDir=%v sawFile=%v", sawDir, sawFile)
	}

	if entry, ok := tr.Get("sub/a.txt"); !ok || entry.Size != 5 {
		t.Fatalf("tracker not seeded: %+v, %v", entry, ok)
	}
}

func TestWalk_RootItselfHasNoEvent(t *testing.T) {
	root := t.TempDir()
	store, _ := chunkstore.Open("fsrecorder_test_", nil)
	defer store.Close()

	events, _, err := Walk(root, capture.Policy{Classifier: classify.Classifier{}, Store: store}, tracker.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if e.SrcPath == "" {
			t.Fatalf("unexpected event for root itself: %+v", e)
		}
	}
}
