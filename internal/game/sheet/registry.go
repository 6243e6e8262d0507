package sheet

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds all known sheets keyed by ID.
//
// A Registry is populated once at startup and only read afterwards.
type Registry struct {
	sheets map[string]*Sheet
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sheets: make(map[string]*Sheet)}
}

// Register adds s, overwriting any sheet with the same ID.
//
// Precondition: s must not be nil and s.ID must not be empty.
func (r *Registry) Register(s *Sheet) {
	r.sheets[s.ID] = s
}

// Get returns the sheet for ref, or (nil, false).
func (r *Registry) Get(ref string) (*Sheet, bool) {
	s, ok := r.sheets[ref]
	return s, ok
}

// All returns the registered sheets sorted by ID.
func (r *Registry) All() []*Sheet {
	out := make([]*Sheet, 0, len(r.sheets))
	for _, s := range r.sheets {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadDirectory parses every *.yaml file in dir as a Sheet.
//
// Postcondition: Returns a non-nil Registry, or an error naming the first file
// that fails to parse or lacks an id.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading sheet dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var s Sheet
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("parsing %q: missing id", path)
		}
		reg.Register(&s)
	}
	return reg, nil
}
