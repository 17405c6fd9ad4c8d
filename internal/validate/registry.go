package validate

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/rpcsim/internal/rpcerr"
)

//go:embed schemas/*.cue
var builtinSchemas embed.FS

// Registry maps schema names to compiled CUE schemas. A Registry is an
// explicit value: there is no process-wide schema table.
//
// Safe for concurrent use; a cue.Context is not, so all CUE evaluation is
// serialized.
type Registry struct {
	mu      sync.Mutex
	ctx     *cue.Context
	schemas map[string]cue.Value
}

// NewRegistry returns a registry preloaded with the built-in "transfer" and
// "entry_function" schemas.
func NewRegistry() *Registry {
	r := &Registry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	entries, err := builtinSchemas.ReadDir("schemas")
	if err != nil {
		panic(fmt.Sprintf("validate: reading embedded schemas: %v", err))
	}
	for _, e := range entries {
		src, err := builtinSchemas.ReadFile("schemas/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("validate: reading embedded schema %s: %v", e.Name(), err))
		}
		if err := r.Register(strings.TrimSuffix(e.Name(), ".cue"), string(src)); err != nil {
			panic(fmt.Sprintf("validate: compiling embedded schema %s: %v", e.Name(), err))
		}
	}
	return r
}

// Register compiles src and stores it under name, replacing any previous
// schema of that name.
func (r *Registry) Register(name, src string) error {
	if name == "" {
		return rpcerr.InvalidArgument("name", "schema name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.ctx.CompileString(src, cue.Filename(name+".cue"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile schema %s: %w", name, firstCUEError(err))
	}
	r.schemas[name] = v
	return nil
}

// LoadDir registers every *.cue file in dir under its base name.
// It returns the names registered, sorted.
func (r *Registry) LoadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".cue" {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return names, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".cue")
		if err := r.Register(name, string(src)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Names returns the registered schema names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.schemas))
	for n := range r.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks payload against the schema registered under name.
//
// A missing schema yields UNKNOWN_SCHEMA. A payload that does not satisfy the
// schema yields INVALID_ARGUMENT with Details["argument"] set to the first
// path element of the first failing field.
func (r *Registry) Validate(name string, payload any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	schema, ok := r.schemas[name]
	if !ok {
		return false, rpcerr.UnknownSchema(name, r.namesLocked())
	}

	data := r.ctx.Encode(payload)
	if err := data.Err(); err != nil {
		return false, rpcerr.InvalidArgument(ArgType, fmt.Sprintf("payload cannot be encoded: %v", err))
	}

	if err := schema.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return false, schemaViolation(name, err)
	}
	return true, nil
}

func schemaViolation(name string, err error) *rpcerr.Error {
	argument := ArgType
	msg := err.Error()
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		msg = errs[0].Error()
		if path := errs[0].Path(); len(path) > 0 {
			argument = path[0]
		}
	}
	e := rpcerr.InvalidArgument(argument, fmt.Sprintf("payload does not match schema %s: %s", name, msg))
	e.Details[rpcerr.DetailSchema] = name
	return e
}

func firstCUEError(err error) error {
	if errs := cueerrors.Errors(err); len(errs) > 0 {
		return errs[0]
	}
	return err
}
