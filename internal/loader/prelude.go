package loader

import (
	_ "embed"
	"fmt"
)

// preludeDocument is the smithy.api namespace: the simple type shapes every
// model can target by bare name, and the trait shapes that bootstrap trait
// validation, starting with smithy.api#trait itself.
//
//go:embed prelude.json
var preludeDocument []byte

const preludePath = "smithy.api/prelude.json"

// loadPrelude lowers the embedded prelude into the graph before any user
// source is applied. The prelude ships with the binary, so any failure here
// is a build defect, not an input error.
func (a *Assembler) loadPrelude() {
	id := a.files.AddVirtual(preludePath, preludeDocument)
	ops, err := LowerJSON(a.files.Get(id))
	if err != nil {
		panic(fmt.Sprintf("prelude: %v", err))
	}
	for _, op := range ops {
		a.applyOp(op)
	}
	if len(a.pending) != 0 || a.bag.Len() != 0 {
		panic("prelude: document is not self-contained")
	}
}
