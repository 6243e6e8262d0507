package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConditionDef is the static reference entry for a condition, loaded from YAML.
type ConditionDef struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Registry holds all known ConditionDefs keyed by ID, with a secondary
// case-insensitive index by display name.
//
// A Registry is populated once at startup and only read afterwards.
type Registry struct {
	defs   map[string]*ConditionDef
	byName map[string]*ConditionDef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:   make(map[string]*ConditionDef),
		byName: make(map[string]*ConditionDef),
	}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
//
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *ConditionDef) {
	if old, ok := r.defs[def.ID]; ok {
		delete(r.byName, strings.ToLower(old.Name))
	}
	r.defs[def.ID] = def
	if def.Name != "" {
		r.byName[strings.ToLower(def.Name)] = def
	}
}

// Get returns the ConditionDef for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*ConditionDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// Lookup resolves key as an ID first and then as a case-insensitive name.
func (r *Registry) Lookup(key string) (*ConditionDef, bool) {
	if d, ok := r.defs[key]; ok {
		return d, true
	}
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(key))]
	return d, ok
}

// All returns the registered definitions sorted by ID.
func (r *Registry) All() []*ConditionDef {
	out := make([]*ConditionDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Instantiate builds an active Condition from the definition named by key.
//
// Postcondition: ok is false when key is unknown; the returned Condition
// carries the definition's ID and display name.
func (r *Registry) Instantiate(key string, dc, duration *int) (Condition, bool) {
	def, ok := r.Lookup(key)
	if !ok {
		return Condition{}, false
	}
	return Condition{ID: def.ID, Name: def.Name, DC: dc, Duration: duration}, true
}

// LoadDirectory reads every *.yaml file in dir, parses each as a ConditionDef,
// and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to
// parse or lacks an id.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !isYAML(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def ConditionDef
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if def.ID == "" {
			return nil, fmt.Errorf("parsing %q: missing id", path)
		}
		reg.Register(&def)
	}
	return reg, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
