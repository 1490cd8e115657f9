// Package driver orchestrates a model build: it fans sources out to the
// front-ends, feeds the resulting operation streams to the assembler, and
// caches assembled graphs on disk.
package driver

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"anvil/internal/diag"
	"anvil/internal/loader"
	"anvil/internal/model"
	"anvil/internal/source"
)

// Options configures a load.
type Options struct {
	// BaseDir roots relative path rendering in diagnostics.
	BaseDir string
	// MaxDiagnostics caps the bag; 0 uses a generous default.
	MaxDiagnostics int
	// Jobs bounds lowering parallelism; 0 uses GOMAXPROCS.
	Jobs int
	// FrontEnds maps additional extensions (".smithy") to front-ends.
	FrontEnds map[string]loader.FrontEnd
}

const defaultMaxDiagnostics = 1000

// Result carries everything a caller needs to inspect a finished load. Graph
// is nil when assembly failed; the bag explains why either way.
type Result struct {
	Graph   *model.Graph
	Bag     *diag.Bag
	FileSet *source.FileSet
}

// Load assembles a graph from the given source paths. Documents are lowered
// in parallel; operation application and the final assembly are serial and
// order-independent.
func Load(ctx context.Context, paths []string, opts Options) (*Result, error) {
	if opts.MaxDiagnostics <= 0 {
		opts.MaxDiagnostics = defaultMaxDiagnostics
	}
	fileSet := source.NewFileSetWithBase(opts.BaseDir)
	asm := loader.NewAssembler(fileSet, opts.MaxDiagnostics)
	disp := loader.NewDispatcher(fileSet)
	for ext, fe := range opts.FrontEnds {
		disp.Register(ext, fe)
	}

	// Registration mutates the FileSet; keep it on this goroutine.
	var fileIDs []source.FileID
	for _, p := range paths {
		fileIDs = append(fileIDs, disp.Preload(p, asm.Bag())...)
	}
	if asm.Bag().HasErrors() {
		asm.FailSource()
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	type lowered struct {
		ops []loader.Op
		bag *diag.Bag
	}
	results := make([]lowered, len(fileIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, max(len(fileIDs), 1)))
	for i, id := range fileIDs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			bag := diag.NewBag(opts.MaxDiagnostics)
			ops := disp.LowerLoaded(fileSet.Get(id), bag)
			results[i] = lowered{ops: ops, bag: bag}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		asm.Bag().Merge(r.bag)
		if r.bag.HasErrors() {
			asm.FailSource()
		}
		asm.Add(r.ops)
	}

	graph, bag, err := asm.Assemble()
	res := &Result{Graph: graph, Bag: bag, FileSet: fileSet}
	if err != nil {
		return res, err
	}
	return res, nil
}
