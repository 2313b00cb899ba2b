package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestClassify_BuiltinExtensions(t *testing.T) {
	dir := t.TempDir()
	c := Classifier{}

	txt := writeFile(t, dir, "readme.txt", []byte("hello"))
	if k, err := c.Classify(txt); err != nil || k != Text {
		t.Errorf("readme.txt: got %v, %v, want Text", k, err)
	}

	png := writeFile(t, dir, "image.png", []byte{0x89, 'P', 'N', 'G'})
	if k, err := c.Classify(png); err != nil || k != Binary {
		t.Errorf("image.png: got %v, %v, want Binary", k, err)
	}
}

func TestClassify_ForceOverridesWinOverBuiltins(t *testing.T) {
	dir := t.TempDir()
	c := Classifier{
		ForceText:   NewExtensionSet([]string{"png"}),
		ForceBinary: NewExtensionSet([]string{".txt"}),
	}

	png := writeFile(t, dir, "a.png", []byte{0x89, 'P', 'N', 'G'})
	if k, _ := c.Classify(png); k != Text {
		t.Errorf("forced-text png classified as %v", k)
	}

	txt := writeFile(t, dir, "a.txt", []byte("hello"))
	if k, _ := c.Classify(txt); k != Binary {
		t.Errorf("forced-binary txt classified as %v", k)
	}
}

func TestClassify_SniffUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	c := Classifier{}

	empty := writeFile(t, dir, "empty.weird", nil)
	if k, _ := c.Classify(empty); k != Text {
		t.Errorf("empty file: got %v, want Text", k)
	}

	nulByte := writeFile(t, dir, "nul.weird", []byte("abc\x00def"))
	if k, _ := c.Classify(nulByte); k != Binary {
		t.Errorf("NUL-containing file: got %v, want Binary", k)
	}

	validUTF8 := writeFile(t, dir, "utf8.weird", []byte("héllo wörld"))
	if k, _ := c.Classify(validUTF8); k != Text {
		t.Errorf("valid UTF-8 file: got %v, want Text", k)
	}

	invalid := writeFile(t, dir, "invalid.weird", []byte{0xff, 0xfe, 0x00, 0x01})
	if k, _ := c.Classify(invalid); k != Binary {
		t.Errorf("invalid UTF-8 file: got %v, want Binary", k)
	}
}

func TestClassify_CaseInsensitiveExtension(t *testing.T) {
	dir := t.TempDir()
	c := Classifier{}
	upper := writeFile(t, dir, "README.TXT", []byte("hi"))
	if k, _ := c.Classify(upper); k != Text {
		t.Errorf("README.TXT: got %v, want Text", k)
	}
}
