package source

type (
	// FileID uniquely identifies a source document within a FileSet.
	FileID uint32
	// FileFlags encodes metadata about how a document was obtained.
	FileFlags uint8
)

const (
	// FileVirtual indicates the document was added from memory (test, stdin, prelude).
	FileVirtual FileFlags = 1 << iota
	// FileArchiveEntry indicates the document came out of a model archive.
	FileArchiveEntry
	FileHadBOM
)

// File captures metadata and content for a single model document.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	LineIdx []uint32
	Digest  [32]byte
	Flags   FileFlags
}

// LineCol represents a human-readable position in a document.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}
