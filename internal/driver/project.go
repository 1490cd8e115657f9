package driver

import (
	"context"
	"fmt"

	"anvil/internal/diag"
	"anvil/internal/project"
)

// ProjectResult wraps a Result with cache provenance.
type ProjectResult struct {
	Result
	// FromCache is set when the graph came from the disk cache. Cached graphs
	// carry no spans and an empty FileSet.
	FromCache bool
	Sources   []string
}

// LoadProject assembles the model named by a manifest. When a cache is given
// and every source digest matches a previous clean build, the cached graph is
// returned without re-running assembly.
func LoadProject(ctx context.Context, m *project.Manifest, cache *DiskCache, opts Options) (*ProjectResult, error) {
	paths, err := m.Sources()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: no sources match %v", m.Path, m.Config.Model.Sources)
	}
	if opts.BaseDir == "" {
		opts.BaseDir = m.Root
	}

	var key Digest
	haveKey := false
	if cache != nil {
		if key, err = SourcesKey(paths); err == nil {
			haveKey = true
			if g, ok := cache.Get(key); ok {
				return &ProjectResult{
					Result: Result{
						Graph:   g,
						Bag:     diag.NewBag(opts.MaxDiagnostics),
						FileSet: g.Files(),
					},
					FromCache: true,
					Sources:   paths,
				}, nil
			}
		}
	}

	res, err := Load(ctx, paths, opts)
	if err != nil {
		if res == nil {
			return nil, err
		}
		return &ProjectResult{Result: *res, Sources: paths}, err
	}
	// Only clean builds are cached; diagnostics are not stored. A failed
	// cache write just means a rebuild next time.
	if haveKey && !res.Bag.HasErrors() {
		_ = cache.Put(key, res.Graph)
	}
	return &ProjectResult{Result: *res, Sources: paths}, nil
}
