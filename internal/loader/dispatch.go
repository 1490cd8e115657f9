package loader

import (
	"archive/zip"
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"anvil/internal/diag"
	"anvil/internal/source"
)

// FrontEnd lowers one loaded document into the operation stream.
type FrontEnd func(f *source.File) ([]Op, error)

// archiveManifest is the entry listing inside a model archive, one entry
// path per line relative to its own directory.
const archiveManifest = "META-INF/smithy/manifest"

// Dispatcher routes a source to a front-end by its extension. The JSON-AST
// front-end and archive expansion are built in; hosts may register further
// front-ends (a textual IDL, generated sources) per extension.
type Dispatcher struct {
	files     *source.FileSet
	frontEnds map[string]FrontEnd
}

func NewDispatcher(files *source.FileSet) *Dispatcher {
	d := &Dispatcher{
		files:     files,
		frontEnds: make(map[string]FrontEnd),
	}
	d.Register(".json", LowerJSON)
	return d
}

// Register installs a front-end for an extension such as ".smithy".
func (d *Dispatcher) Register(ext string, fe FrontEnd) {
	d.frontEnds[ext] = fe
}

// Preload registers a source with the FileSet without lowering it, expanding
// archives into their manifest entries. Registration mutates the FileSet and
// must stay on one goroutine; the returned files can then be lowered
// concurrently.
func (d *Dispatcher) Preload(p string, bag *diag.Bag) []source.FileID {
	if isArchivePath(p) {
		return d.preloadArchive(p, bag)
	}
	id, err := d.files.Load(p)
	if err != nil {
		bag.Add(diag.NewError(diag.IOLoadError, source.Span{},
			fmt.Sprintf("error loading %s: %v", p, err)))
		return nil
	}
	return []source.FileID{id}
}

// LowerFile loads and lowers one source from disk. Front-end failures are
// fatal for that source only: its ops are dropped and the failure is
// reported, letting the remaining sources surface their own findings.
func (d *Dispatcher) LowerFile(p string, bag *diag.Bag) []Op {
	var ops []Op
	for _, id := range d.Preload(p, bag) {
		ops = append(ops, d.LowerLoaded(d.files.Get(id), bag)...)
	}
	return ops
}

// LowerBytes lowers an in-memory document under the given name.
func (d *Dispatcher) LowerBytes(name string, content []byte, bag *diag.Bag) []Op {
	id := d.files.AddVirtual(name, content)
	return d.LowerLoaded(d.files.Get(id), bag)
}

// LowerLoaded lowers an already-registered document. It never mutates the
// FileSet, so distinct documents may be lowered in parallel.
func (d *Dispatcher) LowerLoaded(f *source.File, bag *diag.Bag) []Op {
	fe, ok := d.frontEnds[extensionOf(f.Path)]
	if !ok {
		bag.Add(diag.New(diag.SevWarning, diag.UnrecognizedSourceKind, source.Span{File: f.ID},
			fmt.Sprintf("no front-end is able to load %s", f.Path)))
		return nil
	}
	ops, err := fe(f)
	if err != nil {
		var se *SourceError
		if errors.As(err, &se) {
			bag.Add(se.Diagnostic())
		} else {
			bag.Add(diag.NewError(diag.SyntaxError, source.Span{File: f.ID}, err.Error()))
		}
		return nil
	}
	return ops
}

// preloadArchive expands a model archive: the manifest enumerates further
// sources which are registered individually, each keeping the archive
// identity in its path for diagnostics.
func (d *Dispatcher) preloadArchive(p string, bag *diag.Bag) []source.FileID {
	zr, err := zip.OpenReader(p)
	if err != nil {
		bag.Add(diag.NewError(diag.IOLoadError, source.Span{},
			fmt.Sprintf("error opening archive %s: %v", p, err)))
		return nil
	}
	defer zr.Close()

	entries, err := readArchiveManifest(&zr.Reader)
	if err != nil {
		bag.Add(diag.NewError(diag.ArchiveManifestError, source.Span{},
			fmt.Sprintf("archive %s: %v", p, err)))
		return nil
	}

	var ids []source.FileID
	for _, entry := range entries {
		full := path.Join(path.Dir(archiveManifest), entry)
		content, err := readZipEntry(&zr.Reader, full)
		if err != nil {
			bag.Add(diag.NewError(diag.IOLoadError, source.Span{},
				fmt.Sprintf("archive %s: entry %s: %v", p, entry, err)))
			continue
		}
		ids = append(ids, d.files.AddArchiveEntry(p, entry, content))
	}
	return ids
}

func readArchiveManifest(zr *zip.Reader) ([]string, error) {
	rc, err := openZipEntry(zr, archiveManifest)
	if err != nil {
		return nil, fmt.Errorf("missing manifest %s", archiveManifest)
	}
	defer rc.Close()

	var entries []string
	sc := bufio.NewScanner(rc)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if path.IsAbs(line) || strings.Contains(line, "..") {
			return nil, fmt.Errorf("invalid manifest entry %q", line)
		}
		entries = append(entries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func openZipEntry(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	rc, err := openZipEntry(zr, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func isArchivePath(p string) bool {
	ext := extensionOf(p)
	return ext == ".zip" || ext == ".jar"
}

func extensionOf(p string) string {
	// Archive entry paths carry the archive name; the entry's own extension
	// decides the front-end.
	if i := strings.LastIndexByte(p, '!'); i >= 0 {
		p = p[i+1:]
	}
	return strings.ToLower(path.Ext(p))
}
