package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed default.cue
var defaultCUE []byte

// catalogPath locates the concrete catalog value inside a CUE document.
var catalogPath = cue.ParsePath("catalog")

// schemaPath locates the #Catalog definition inside the embedded document.
var schemaPath = cue.ParsePath("#Catalog")

// Default returns the embedded vocabulary.
func Default() (*Catalog, error) {
	ctx := cuecontext.New()

	value := ctx.CompileBytes(defaultCUE, cue.Filename("default.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded catalog: %w", err)
	}

	return decode(value.LookupPath(catalogPath))
}

// Load reads a CUE file from disk, validates it against the embedded
// #Catalog schema, and returns the decoded vocabulary. The file must
// define a top-level `catalog` field.
func Load(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	ctx := cuecontext.New()

	embedded := ctx.CompileBytes(defaultCUE, cue.Filename("default.cue"))
	if err := embedded.Err(); err != nil {
		return nil, fmt.Errorf("compile embedded catalog: %w", err)
	}
	schema := embedded.LookupPath(schemaPath)
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("lookup catalog schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog file %s: %w", path, err)
	}

	concrete := value.LookupPath(catalogPath)
	if err := concrete.Err(); err != nil {
		return nil, fmt.Errorf("catalog file %s: missing top-level catalog field: %w", path, err)
	}

	unified := schema.Unify(concrete)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("catalog file %s does not satisfy schema: %w", path, err)
	}

	return decode(unified)
}

// decode turns a validated CUE value into a Catalog with its lookup
// indexes built.
func decode(value cue.Value) (*Catalog, error) {
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("catalog value: %w", err)
	}

	var cat Catalog
	if err := value.Decode(&cat); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := cat.finalize(); err != nil {
		return nil, err
	}

	return &cat, nil
}
