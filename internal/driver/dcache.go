package driver

import (
	"bytes"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"anvil/internal/export"
	"anvil/internal/model"
)

// Digest keys disk cache entries.
type Digest = [32]byte

// DiskCache stores assembled graph snapshots keyed by an aggregate source
// digest. Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache initializes and returns a disk cache at the standard location.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) pathFor(key Digest) string {
	hexKey := hex.EncodeToString(key[:])
	return filepath.Join(c.dir, "graphs", hexKey+".mp")
}

// Put writes a graph snapshot to the disk cache.
func (c *DiskCache) Put(key Digest, g *model.Graph) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteSnapshot(&buf, g); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a graph snapshot from the disk cache. A decodable entry written
// under a stale schema counts as a miss, not an error.
func (c *DiskCache) Get(key Digest) (*model.Graph, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false
		}
		return nil, false
	}
	defer f.Close()
	g, err := export.ReadSnapshot(f)
	if err != nil {
		return nil, false
	}
	return g, true
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

// SourcesKey derives a cache key from source file contents. Paths are hashed
// together with their contents so renames invalidate, and the path list is
// sorted so argument order does not.
func SourcesKey(paths []string) (Digest, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	h := blake3.New(32, nil)
	for _, p := range sorted {
		content, err := os.ReadFile(p)
		if err != nil {
			return Digest{}, err
		}
		digest := blake3.Sum256(content)
		h.Write([]byte(p))
		h.Write([]byte{0})
		h.Write(digest[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out, nil
}
