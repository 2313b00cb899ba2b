package recorder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fsrecorder/internal/archive"
	"fsrecorder/internal/event"
)

func TestRecorder_SnapshotThenAppend(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	rec, err := New(Options{Root: root, SkipBinaryContent: true})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rec.Start(ctx); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(filepath.Join(root, "a.txt"), os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(" world"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	// Give the watcher goroutine a moment to observe and classify the
	// write before we stop the run.
	time.Sleep(200 * time.Millisecond)

	outPath := filepath.Join(t.TempDir(), "out.fsrec.gz")
	report, err := rec.Stop(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if report.TotalEvents < 2 {
		t.Fatalf("expected at least initial_file + appended, got %d events", report.TotalEvents)
	}

	a, err := archive.Open(outPath)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	var sawInitial, sawAppended bool
	for _, e := range a.Manifest.Events {
		switch e.Type {
		case event.KindInitialFile:
			if e.SrcPath == "a.txt" {
				sawInitial = true
			}
		case event.KindAppended:
			if e.SrcPath == "a.txt" {
				sawAppended = true
			}
		}
	}
	if !sawInitial || !sawAppended {
		t.Fatalf("sawInitial=%v sawAppended=%v events=%+v", sawInitial, sawAppended, a.Manifest.Events)
	}
}

func TestRecorder_StopBeforeStartErrors(t *testing.T) {
	rec, err := New(Options{Root: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rec.Stop(filepath.Join(t.TempDir(), "out.gz")); err == nil {
		t.Fatal("expected error calling Stop before Start")
	}
}
