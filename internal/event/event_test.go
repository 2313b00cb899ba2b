package event

import (
	"encoding/json"
	"testing"
)

func TestValidate_ContentAndChunkMutuallyExclusive(t *testing.T) {
	text := "hello"
	e := Event{Type: KindCreated, SrcPath: "a.txt", Content: &text, BinaryChunkID: "chunk_0"}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error when content and binary_chunk_id are both set")
	}
}

func TestValidate_DestPathOnlyOnMoved(t *testing.T) {
	e := Event{Type: KindCreated, SrcPath: "a.txt", DestPath: "b.txt"}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error when dest_path is set on a non-moved event")
	}

	moved := NewMoved("a.txt", "b.txt", false)
	if err := moved.Validate(); err != nil {
		t.Fatalf("moved event should validate: %v", err)
	}
}

func TestValidate_FilePositionOnlyOnAppended(t *testing.T) {
	pos := int64(5)
	e := Event{Type: KindModified, SrcPath: "a.txt", FilePosition: &pos}
	if err := e.Validate(); err == nil {
		t.Fatal("expected error when file_position is set on a non-appended event")
	}
}

func TestValidate_DirectoryEventCarriesNoContent(t *testing.T) {
	e := NewDeleted("a", true)
	if err := e.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := Event{Type: KindCreated, SrcPath: "dir", IsDirectory: true, ContentHash: "deadbeef"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error when a directory event carries a content hash")
	}
}

func TestMarshalFlatObject(t *testing.T) {
	text := "hello"
	e := NewCreated(FileContentParams{Path: "a.txt", Size: 5, Hash: "abc", Content: &text})
	e.Timestamp = 100.5

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}

	for _, absent := range []string{"dest_path", "binary_chunk_id", "file_position", "operation_data"} {
		if _, ok := m[absent]; ok {
			t.Errorf("expected %q to be omitted, got %v", absent, m[absent])
		}
	}
	if m["event_type"] != "created" {
		t.Errorf("event_type = %v, want created", m["event_type"])
	}
	if m["content"] != "hello" {
		t.Errorf("content = %v, want hello", m["content"])
	}
}

func TestAppendedRoundTrip(t *testing.T) {
	suffix := " world"
	e := NewAppended(AppendedParams{
		Path: "a.txt", FilePosition: 5, AppendSize: 6, NewSize: 11, NewHash: "h", Content: &suffix,
	})

	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Event
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.FilePosition == nil || *back.FilePosition != 5 {
		t.Fatalf("file_position round-trip failed: %+v", back.FilePosition)
	}
	if back.OperationData == nil || back.OperationData.AppendSize == nil || *back.OperationData.AppendSize != 6 {
		t.Fatalf("operation_data.append_size round-trip failed: %+v", back.OperationData)
	}
}
