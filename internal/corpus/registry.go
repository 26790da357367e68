package corpus

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrUnknownLanguage is returned when no model is registered under a name.
var ErrUnknownLanguage = errors.New("unknown language")

// #region registry

// Registry maps reference-language names to their models. Models are
// immutable, so a Registry can be read from many goroutines at once.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register stores m under name, replacing any previous model.
func (r *Registry) Register(name string, m *Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[name] = m
}

// Get returns the model registered under name.
func (r *Registry) Get(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, name)
	}
	return m, nil
}

// Languages returns the registered names in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// #endregion registry

// #region load

// LoadFile reads a raw reference text, cleans it and builds a model.
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	m, err := Build(Clean(string(data)))
	if err != nil {
		return nil, fmt.Errorf("build corpus %s: %w", path, err)
	}
	return m, nil
}

// LoadAll builds one model per entry of paths (language -> file).
func LoadAll(paths map[string]string) (*Registry, error) {
	reg := NewRegistry()
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m, err := LoadFile(paths[name])
		if err != nil {
			return nil, fmt.Errorf("language %s: %w", name, err)
		}
		reg.Register(name, m)
	}
	return reg, nil
}

// #endregion load
