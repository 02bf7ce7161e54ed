package interpreter

import (
	"context"
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/cesardraw2/zeppelin/cfg"
	"github.com/cesardraw2/zeppelin/telemetry"
)

// Registry maps profile names (paragraph triggers such as "tsql") to open
// interpreters.
type Registry struct {
	interpreters *xsync.MapOf[string, *Interpreter]
}

func NewRegistry() *Registry {
	return &Registry{
		interpreters: xsync.NewMapOf[string, *Interpreter](),
	}
}

// Register adds an interpreter; names are unique.
func (r *Registry) Register(it *Interpreter) error {
	if _, loaded := r.interpreters.LoadOrStore(it.Name(), it); loaded {
		return fmt.Errorf("interpreter %s already registered", it.Name())
	}
	return nil
}

func (r *Registry) Get(name string) (*Interpreter, bool) {
	return r.interpreters.Load(name)
}

// Names returns registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.interpreters.Size())
	r.interpreters.Range(func(name string, _ *Interpreter) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Providers implements telemetry.InterpreterLister
func (r *Registry) Providers() []telemetry.StatsProvider {
	var out []telemetry.StatsProvider
	for _, name := range r.Names() {
		if it, ok := r.Get(name); ok {
			out = append(out, it)
		}
	}
	return out
}

// CloseAll closes and removes every interpreter.
func (r *Registry) CloseAll() {
	for _, name := range r.Names() {
		if it, ok := r.interpreters.LoadAndDelete(name); ok {
			it.Close()
		}
	}
}

// OpenAll creates, opens and registers an interpreter for every profile.
func OpenAll(ctx context.Context, config *cfg.Configuration) (*Registry, error) {
	r := NewRegistry()
	opts := OptionsFromConfig(config.Completion)

	for _, profile := range config.Interpreters {
		it, err := New(profile, opts)
		if err != nil {
			r.CloseAll()
			return nil, err
		}
		if err := r.Register(it); err != nil {
			r.CloseAll()
			return nil, err
		}
		if err := it.Open(ctx); err != nil {
			r.CloseAll()
			return nil, fmt.Errorf("failed to open interpreter %s: %w", profile.Name, err)
		}
	}

	log.Info().Strs("interpreters", r.Names()).Msg("Interpreters ready")
	return r, nil
}
