package component

import (
	"fmt"
	"sort"
)

// Registry is the static set of components managed by this node.
// It is built once at startup and never mutated afterwards, so it is safe for concurrent reads.
type Registry struct {
	descriptors map[string]*Descriptor
	names       []string
}

func NewRegistry(descriptors ...*Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make(map[string]*Descriptor, len(descriptors)),
		names:       make([]string, 0, len(descriptors)),
	}
	for _, d := range descriptors {
		if d == nil {
			return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
		}
		if _, ok := r.descriptors[d.Name()]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateComponent, d.Name())
		}
		r.descriptors[d.Name()] = d
		r.names = append(r.names, d.Name())
	}
	sort.Strings(r.names)
	return r, nil
}

// NewRegistryFromConfigs builds every descriptor and registers them in one step.
func NewRegistryFromConfigs(configs []DescriptorConfig) (*Registry, error) {
	descriptors := make([]*Descriptor, 0, len(configs))
	for _, cfg := range configs {
		d, err := NewDescriptor(cfg)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return NewRegistry(descriptors...)
}

func (r *Registry) Lookup(name string) (*Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return d, nil
}

// Names returns the registered component names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

func (r *Registry) Descriptors() []*Descriptor {
	descriptors := make([]*Descriptor, 0, len(r.names))
	for _, name := range r.names {
		descriptors = append(descriptors, r.descriptors[name])
	}
	return descriptors
}

func (r *Registry) Len() int {
	return len(r.descriptors)
}
