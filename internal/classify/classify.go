// Package classify implements the Content Classifier (spec §4.2):
// deciding whether a file's bytes should be captured as text, as an
// opaque binary chunk, or (when binary-skip is configured) as a
// size-only placeholder.
package classify

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Kind is the classifier's verdict for a file.
type Kind int

const (
	Text Kind = iota
	Binary
)

func (k Kind) String() string {
	if k == Text {
		return "text"
	}
	return "binary"
}

const sniffLimit = 1024 // 1 KiB, per spec §4.2 step 5

// textExtensions and binaryExtensions are the built-in sets from the
// spec Glossary, reproduced verbatim. Keys are lowercase, no leading dot.
var textExtensions = buildSet(
	"txt", "md", "json", "xml", "html", "htm", "css", "js", "py", "java",
	"cpp", "c", "h", "hpp", "cs", "php", "rb", "go", "rs", "sh", "bat",
	"ps1", "yml", "yaml", "toml", "ini", "cfg", "conf", "log", "csv",
	"tsv", "sql", "r", "tex", "latex", "rtf", "dockerfile", "makefile",
	"gitignore", "gitattributes", "license", "readme", "dm",
)

var binaryExtensions = buildSet(
	"jpg", "jpeg", "png", "gif", "bmp", "tiff", "tif", "webp", "ico",
	"svg", "mp4", "avi", "mov", "wmv", "flv", "mkv", "webm", "mp3", "wav",
	"flac", "ogg", "pdf", "doc", "docx", "ppt", "pptx", "xls", "xlsx",
	"zip", "rar", "7z", "tar", "gz", "bz2", "xz", "exe", "dll", "so",
	"dylib", "bin", "dat", "db", "sqlite", "mrc",
)

func buildSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}

// ExtensionSet is a user-provided force-text or force-binary override set.
type ExtensionSet map[string]struct{}

// NewExtensionSet builds an ExtensionSet from a slice of extensions
// (case-insensitive, leading dot optional).
func NewExtensionSet(exts []string) ExtensionSet {
	s := make(ExtensionSet, len(exts))
	for _, e := range exts {
		s[normalizeExt(e)] = struct{}{}
	}
	return s
}

func (s ExtensionSet) has(ext string) bool {
	_, ok := s[ext]
	return ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	return strings.TrimPrefix(ext, ".")
}

func extOf(path string) string {
	ext := filepath.Ext(path)
	return normalizeExt(ext)
}

// Classifier decides text/binary for a file path, honoring user-supplied
// force-text and force-binary overrides ahead of the built-in sets, per
// the decision order in spec §4.2.
type Classifier struct {
	ForceText   ExtensionSet
	ForceBinary ExtensionSet
}

// Classify determines the Kind for path without reading its content when
// the extension alone is decisive. It only opens the file to sniff bytes
// when no extension rule applies.
func (c Classifier) Classify(path string) (Kind, error) {
	ext := extOf(path)

	if c.ForceText.has(ext) {
		return Text, nil
	}
	if c.ForceBinary.has(ext) {
		return Binary, nil
	}
	if _, ok := textExtensions[ext]; ok {
		return Text, nil
	}
	if _, ok := binaryExtensions[ext]; ok {
		return Binary, nil
	}

	return sniff(path)
}

// sniff inspects the first 1 KiB of a file: empty is text, any NUL byte
// is binary, valid UTF-8 is text, anything else is binary.
func sniff(path string) (Kind, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from a recursive walk of a user-chosen directory
	if err != nil {
		return Binary, err
	}
	defer f.Close()

	buf := make([]byte, sniffLimit)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Binary, err
	}
	buf = buf[:n]

	if len(buf) == 0 {
		return Text, nil
	}
	if bytes.IndexByte(buf, 0x00) >= 0 {
		return Binary, nil
	}
	if isValidUTF8(buf) {
		return Text, nil
	}
	return Binary, nil
}

// isValidUTF8 decodes buf as UTF-8 and rejects it if the decoder had to
// substitute the replacement character for any invalid sequence (the
// decoded output then differs from the input). A leading BOM is
// stripped first so BOM-prefixed UTF-8 text still classifies as text.
func isValidUTF8(buf []byte) bool {
	buf = stripBOM(buf)
	dec := unicode.UTF8.NewDecoder()
	out, _, err := transform.Bytes(dec, buf)
	return err == nil && bytes.Equal(out, buf)
}

func stripBOM(buf []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if bytes.HasPrefix(buf, bom) {
		return buf[len(bom):]
	}
	return buf
}
