package completion

import "fmt"

// BuildError reports a metadata introspection failure. Completion degrades
// to empty results; statement execution is unaffected.
type BuildError struct {
	Stage string // "catalogs", "schemas", "tables", "columns" or "keywords"
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("completion %s introspection failed: %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
