package object

import (
	"log/slog"
	"slices"
	"sync"
)

// Constructor creates a zero-valued object of a registered type.
type Constructor func() Object

// Registry maps discriminators to constructors.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// defaultRegistry holds the types registered by generated packages at init.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a type to the process-wide registry.
// This should be called from init() functions in generated type packages.
func Register(objectType string, ctor Constructor) {
	defaultRegistry.Register(objectType, ctor)
}

// Register adds or replaces the constructor for objectType.
func (r *Registry) Register(objectType string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[objectType] = ctor
}

// Create instantiates objectType. ok is false for unknown discriminators.
func (r *Registry) Create(objectType string) (Object, bool) {
	if objectType == "" {
		return nil, false
	}
	r.mu.RLock()
	ctor, ok := r.ctors[objectType]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// Registered returns the known discriminators, sorted.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// factory resolves discriminators against an ordered list of registries.
type factory struct {
	registries []*Registry
}

func (f factory) lookup(objectType string) (Object, bool) {
	for _, r := range f.registries {
		if o, ok := r.Create(objectType); ok {
			return o, true
		}
	}
	return nil, false
}

// create resolves objectType, falling back to the declared type.
func (f factory) create(objectType, fallback string) (Object, bool) {
	if o, ok := f.lookup(objectType); ok {
		return o, true
	}
	if fallback == "" {
		slog.Debug("could not find object type", "object_type", objectType)
		return nil, false
	}
	o, ok := f.lookup(fallback)
	if ok {
		slog.Debug("could not find object type, falling back to declared type",
			"object_type", objectType,
			"fallback", fallback,
		)
		return o, true
	}
	slog.Debug("could not find object type", "object_type", objectType, "fallback", fallback)
	return nil, false
}
