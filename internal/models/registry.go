package models

import (
	"fmt"
	"sort"
)

type entry struct {
	spec AffineSpec
}

// Registry maps model names to constructors. Each Get builds a fresh engine.
type Registry struct {
	models map[string]entry
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]entry)}
	for _, name := range BuiltinNames() {
		spec, err := Builtin(name)
		if err != nil {
			continue
		}
		r.Register(spec)
	}
	return r
}

// Register adds or replaces a model under spec.Name.
func (r *Registry) Register(spec AffineSpec) {
	r.models[spec.Name] = entry{spec: spec}
}

// RegisterFile parses a model file and registers it, returning its name.
func (r *Registry) RegisterFile(path string) (string, error) {
	spec, err := ReadAffine(path)
	if err != nil {
		return "", err
	}
	if _, err := NewAffine(spec); err != nil {
		return "", err
	}
	r.Register(spec)
	return spec.Name, nil
}

func (r *Registry) Get(name string) (*Affine, error) {
	spec, err := r.Spec(name)
	if err != nil {
		return nil, err
	}
	return NewAffine(spec)
}

// Spec returns a copy of the registered spec, for callers that adjust it
// (the step size, say) before building.
func (r *Registry) Spec(name string) (AffineSpec, error) {
	e, ok := r.models[name]
	if !ok {
		return AffineSpec{}, fmt.Errorf("unknown model: %s", name)
	}
	spec := e.spec
	spec.Properties = spec.Properties.Clone()
	return spec, nil
}

func (r *Registry) Describe(name string) string {
	return r.models[name].spec.Description
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
