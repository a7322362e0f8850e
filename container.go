package baseapp

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Lifetime controls how often a service factory runs.
type Lifetime int

const (
	// Singleton services are constructed once per container and memoized.
	Singleton Lifetime = iota
	// Transient services are constructed on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Resolver resolves services by name. Factories receive one so they can
// depend on services registered before or after them.
type Resolver interface {
	Resolve(name string) (any, error)
}

// Factory constructs a service instance.
type Factory func(r Resolver) (any, error)

// ServiceDescriptor describes a registered service.
type ServiceDescriptor struct {
	Name     string
	Factory  Factory
	Lifetime Lifetime
}

type serviceEntry struct {
	desc ServiceDescriptor

	// mu serializes singleton construction for this name only.
	mu       sync.Mutex
	built    bool
	instance any
}

// Container is a name to factory registry with lazy, memoized construction.
//
// Registration overwrites an existing entry of the same name and drops its
// cached instance. Bootstrap steps rely on this to replace services (and
// tests use it to install doubles).
type Container struct {
	mu      sync.RWMutex
	entries map[string]*serviceEntry
	logger  Logger
}

// NewContainer creates an empty container.
func NewContainer(logger Logger) *Container {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Container{
		entries: make(map[string]*serviceEntry),
		logger:  logger,
	}
}

// Register stores a factory under name. A nil factory is a programming error.
func (c *Container) Register(name string, factory Factory, lifetime Lifetime) {
	if factory == nil {
		panic(fmt.Errorf("%w: %s", ErrServiceNil, name))
	}
	c.put(&serviceEntry{desc: ServiceDescriptor{Name: name, Factory: factory, Lifetime: lifetime}})
	c.logger.Debug("Registered service", "name", name, "lifetime", lifetime)
}

// SetEager publishes an already constructed instance under name.
func (c *Container) SetEager(name string, instance any) {
	c.put(&serviceEntry{
		desc:     ServiceDescriptor{Name: name, Lifetime: Singleton},
		built:    true,
		instance: instance,
	})
	c.logger.Debug("Published service", "name", name, "type", reflect.TypeOf(instance))
}

func (c *Container) put(entry *serviceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[entry.desc.Name]; exists {
		c.logger.Debug("Overwriting service", "name", entry.desc.Name)
	}
	c.entries[entry.desc.Name] = entry
}

// Has reports whether name is registered.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok
}

// Names returns the registered service names, sorted.
func (c *Container) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Descriptor returns the descriptor registered under name.
func (c *Container) Descriptor(name string) (ServiceDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[name]
	if !ok {
		return ServiceDescriptor{}, false
	}
	return entry.desc, true
}

// Resolve returns the instance registered under name, constructing it if needed.
func (c *Container) Resolve(name string) (any, error) {
	return c.resolve(name, nil)
}

// MustResolve is Resolve that panics on error.
func (c *Container) MustResolve(name string) any {
	instance, err := c.Resolve(name)
	if err != nil {
		panic(err)
	}
	return instance
}

func (c *Container) resolve(name string, chain []string) (any, error) {
	if slices.Contains(chain, name) {
		return nil, fmt.Errorf("%w: %s", ErrCircularDependency,
			strings.Join(append(slices.Clone(chain), name), " -> "))
	}

	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}

	r := &chainResolver{container: c, chain: append(slices.Clone(chain), name)}

	if entry.desc.Lifetime == Transient {
		return entry.construct(r)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.built {
		return entry.instance, nil
	}
	instance, err := entry.construct(r)
	if err != nil {
		return nil, err
	}
	entry.instance = instance
	entry.built = true
	c.logger.Debug("Constructed service", "name", name, "type", reflect.TypeOf(instance))
	return instance, nil
}

func (e *serviceEntry) construct(r Resolver) (any, error) {
	instance, err := e.desc.Factory(r)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrServiceConstruction, e.desc.Name, err)
	}
	return instance, nil
}

// chainResolver is handed to factories; it remembers which services are
// under construction on this call path so self-dependencies fail fast.
type chainResolver struct {
	container *Container
	chain     []string
}

func (r *chainResolver) Resolve(name string) (any, error) {
	return r.container.resolve(name, r.chain)
}

// ResolveAs resolves name and asserts the instance to T.
func ResolveAs[T any](r Resolver, name string) (T, error) {
	var zero T
	instance, err := r.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: service '%s' of type %T is not %s",
			ErrServiceWrongType, name, instance, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}
