package source

import (
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"lukechampine.com/blake3"
)

// FileSet owns every document that participates in a model assembly and
// resolves spans back to paths and line/column positions.
type FileSet struct {
	files   []File
	index   map[string]FileID
	baseDir string
}

// NewFileSet creates an empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// NewFileSetWithBase creates a FileSet rooted at baseDir for relative path
// rendering.
func NewFileSetWithBase(baseDir string) *FileSet {
	fs := NewFileSet()
	fs.baseDir = baseDir
	return fs
}

// BaseDir returns the configured base directory, falling back to the working
// directory.
func (fs *FileSet) BaseDir() string {
	if fs.baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
	}
	return fs.baseDir
}

// Add stores a document, computes its line index and blake3 digest, and
// returns a fresh FileID. A path may be added more than once; the index keeps
// the latest version.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	n, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("file count overflow: %w", err))
	}
	normalized := normalizePath(path)
	id := FileID(n)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    normalized,
		Content: content,
		LineIdx: buildLineIndex(content),
		Digest:  blake3.Sum256(content),
		Flags:   flags,
	})
	fs.index[normalized] = id
	return id
}

// Load reads a document from disk, strips a UTF-8 BOM if present, and calls Add.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path comes from the project manifest or CLI args
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content, hadBOM := removeBOM(content)
	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	return fs.Add(path, content, flags), nil
}

// AddVirtual adds an in-memory document (prelude, tests, stdin).
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	return fs.Add(name, content, FileVirtual)
}

// AddArchiveEntry adds a document extracted from an archive. The stored path
// keeps the archive identity: "models.zip!weather.json".
func (fs *FileSet) AddArchiveEntry(archivePath, entryName string, content []byte) FileID {
	content, hadBOM := removeBOM(content)
	flags := FileArchiveEntry
	if hadBOM {
		flags |= FileHadBOM
	}
	return fs.Add(archivePath+"!"+entryName, content, flags)
}

// Get returns the document for the given ID.
func (fs *FileSet) Get(id FileID) *File {
	return &fs.files[int(id)]
}

// Len returns the number of stored documents.
func (fs *FileSet) Len() int {
	return len(fs.files)
}

// GetByPath returns the latest document stored under path.
func (fs *FileSet) GetByPath(path string) (*File, bool) {
	if id, ok := fs.index[normalizePath(path)]; ok {
		return &fs.files[id], true
	}
	return nil, false
}

// Path renders the path of the file a span points into; empty spans from an
// unknown file render as "<unknown>".
func (fs *FileSet) Path(span Span) string {
	if int(span.File) >= len(fs.files) {
		return "<unknown>"
	}
	return fs.files[span.File].Path
}

// Resolve converts a span into start and end line/column positions.
func (fs *FileSet) Resolve(span Span) (start, end LineCol) {
	f := fs.files[span.File]
	return toLineCol(f.LineIdx, span.Start), toLineCol(f.LineIdx, span.End)
}

// SpanLess orders spans for deterministic diagnostics: by path
// lexicographically, then by offsets.
func (fs *FileSet) SpanLess(a, b Span) bool {
	pa, pb := fs.Path(a), fs.Path(b)
	if pa != pb {
		return pa < pb
	}
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.End < b.End
}

// FormatPath renders a document path in the requested mode
// ("absolute", "relative", "basename", anything else keeps the stored path).
func (f *File) FormatPath(mode, baseDir string) string {
	switch mode {
	case "absolute":
		if abs, err := filepath.Abs(f.Path); err == nil {
			return abs
		}
		return f.Path
	case "relative":
		if baseDir == "" {
			if wd, err := os.Getwd(); err == nil {
				baseDir = wd
			}
		}
		if rel, err := filepath.Rel(baseDir, f.Path); err == nil {
			return filepath.ToSlash(rel)
		}
		return f.Path
	case "basename":
		return filepath.Base(f.Path)
	default:
		return f.Path
	}
}
