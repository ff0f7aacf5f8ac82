package pytree

import (
	"fmt"
	"reflect"
	"sync"
)

// FlattenFunc decomposes a registered node into ordered children and
// metadata. The returned entries may be nil; when present they must contain
// one path entry per child, in child order.
type FlattenFunc func(node any) (children []any, metadata any, entries []Entry, err error)

// UnflattenFunc rebuilds a node from its metadata and reconstructed
// children. It should produce a value that FlattenFunc decomposes back into
// the same (children, metadata); the engine does not verify this.
type UnflattenFunc func(metadata any, children []any) (any, error)

// EntryBuilder produces the path entry addressing child index of a node
// carrying the given metadata. Registrations without a builder fall back to
// AutoEntry.
type EntryBuilder func(metadata any, index int) Entry

// Registration describes how one registered type decomposes.
type Registration struct {
	Kind      Kind
	Type      reflect.Type
	Namespace string
	Flatten   FlattenFunc
	Unflatten UnflattenFunc
	Entry     EntryBuilder
}

type registryKey struct {
	namespace string
	typ       reflect.Type
}

// Registry maps runtime types to node handlers, partitioned by namespace.
// The empty namespace is the global partition consulted as a fallback.
// Lookups take a read lock so registration may, in principle, race with
// traversal, though the expected pattern is register-before-use.
type Registry struct {
	mu            sync.RWMutex
	registrations map[registryKey]*Registration
}

// NewRegistry constructs an empty registry. Builtin container handling is
// part of every registry's lookup fallback and needs no registration.
func NewRegistry() *Registry {
	return &Registry{registrations: make(map[registryKey]*Registration)}
}

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *Registry
)

// DefaultRegistry returns the shared process registry used when no explicit
// registry is configured on a call.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// builtinKinds maps the builtin container types to their node kinds. These
// types cannot be re-registered or unregistered.
var builtinKinds = map[reflect.Type]Kind{
	reflect.TypeOf(Tuple(nil)):          KindTuple,
	reflect.TypeOf([]any(nil)):          KindList,
	reflect.TypeOf(map[string]any(nil)): KindDict,
	reflect.TypeOf((*OrderedMap)(nil)):  KindOrderedMap,
	reflect.TypeOf((*DefaultMap)(nil)):  KindDefaultMap,
}

// RegisterOption configures a registration or unregistration.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	namespace string
	entry     EntryBuilder
}

// InNamespace scopes the registration to a named registry partition.
func InNamespace(namespace string) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.namespace = namespace
	}
}

// WithPathEntryBuilder sets the accessor entry variant produced for the
// registered type's children.
func WithPathEntryBuilder(builder EntryBuilder) RegisterOption {
	return func(cfg *registerConfig) {
		cfg.entry = builder
	}
}

func applyRegisterOptions(opts []RegisterOption) registerConfig {
	cfg := registerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// typeOf resolves the registered type for a prototype, accepting either a
// value of the type or a reflect.Type directly.
func typeOf(prototype any) (reflect.Type, error) {
	if prototype == nil {
		return nil, fmt.Errorf("pytree: cannot register the nil marker")
	}
	if typ, ok := prototype.(reflect.Type); ok {
		return typ, nil
	}
	return reflect.TypeOf(prototype), nil
}

// Register stores a handler for the prototype's type. It fails with a
// *DuplicateRegistrationError when the (type, namespace) pair already has a
// handler, and rejects the builtin container types.
func (r *Registry) Register(prototype any, flatten FlattenFunc, unflatten UnflattenFunc, opts ...RegisterOption) error {
	typ, err := typeOf(prototype)
	if err != nil {
		return err
	}
	if flatten == nil {
		return fmt.Errorf("pytree: flatten function for %s is nil", typ)
	}
	if unflatten == nil {
		return fmt.Errorf("pytree: unflatten function for %s is nil", typ)
	}
	if _, builtin := builtinKinds[typ]; builtin {
		return fmt.Errorf("pytree: type %s is a builtin container and cannot be re-registered", typ)
	}
	cfg := applyRegisterOptions(opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{namespace: cfg.namespace, typ: typ}
	if _, exists := r.registrations[key]; exists {
		return &DuplicateRegistrationError{Type: typ, Namespace: cfg.namespace}
	}
	r.registrations[key] = &Registration{
		Kind:      KindCustom,
		Type:      typ,
		Namespace: cfg.namespace,
		Flatten:   flatten,
		Unflatten: unflatten,
		Entry:     cfg.entry,
	}
	return nil
}

// Unregister removes the handler stored for the prototype's type. It fails
// with a *RegistrationNotFoundError when no handler exists in the namespace.
func (r *Registry) Unregister(prototype any, opts ...RegisterOption) error {
	typ, err := typeOf(prototype)
	if err != nil {
		return err
	}
	if _, builtin := builtinKinds[typ]; builtin {
		return fmt.Errorf("pytree: type %s is a builtin container and cannot be unregistered", typ)
	}
	cfg := applyRegisterOptions(opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{namespace: cfg.namespace, typ: typ}
	if _, exists := r.registrations[key]; !exists {
		return &RegistrationNotFoundError{Type: typ, Namespace: cfg.namespace}
	}
	delete(r.registrations, key)
	return nil
}

// Lookup returns the registration stored for the prototype's type, checking
// namespace first and then the global partition.
func (r *Registry) Lookup(prototype any, namespace string) (*Registration, bool) {
	typ, err := typeOf(prototype)
	if err != nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if namespace != "" {
		if reg, ok := r.registrations[registryKey{namespace: namespace, typ: typ}]; ok {
			return reg, true
		}
	}
	reg, ok := r.registrations[registryKey{typ: typ}]
	return reg, ok
}

// lookupKind resolves the node kind for typ: registered handlers first
// (namespace, then global), then the builtin container table, then the two
// structural record oracles. Unmatched types are leaves.
func (r *Registry) lookupKind(typ reflect.Type, namespace string) (Kind, *Registration) {
	r.mu.RLock()
	if namespace != "" {
		if reg, ok := r.registrations[registryKey{namespace: namespace, typ: typ}]; ok {
			r.mu.RUnlock()
			return reg.Kind, reg
		}
	}
	if reg, ok := r.registrations[registryKey{typ: typ}]; ok {
		r.mu.RUnlock()
		return reg.Kind, reg
	}
	r.mu.RUnlock()

	if kind, ok := builtinKinds[typ]; ok {
		return kind, nil
	}
	if desc := structDescriptorOf(typ); desc != nil {
		if typ.Name() != "" {
			return KindStruct, nil
		}
		return KindAnonStruct, nil
	}
	return KindLeaf, nil
}

// Register stores a handler on the default registry. See Registry.Register.
func Register(prototype any, flatten FlattenFunc, unflatten UnflattenFunc, opts ...RegisterOption) error {
	return DefaultRegistry().Register(prototype, flatten, unflatten, opts...)
}

// Unregister removes a handler from the default registry. See
// Registry.Unregister.
func Unregister(prototype any, opts ...RegisterOption) error {
	return DefaultRegistry().Unregister(prototype, opts...)
}

// structDescriptor caches the record shape computed for a struct type.
type structDescriptor struct {
	typ    reflect.Type
	fields []string
}

// structDescriptors caches descriptor computation per type, including the
// negative result, so traversal never re-probes fields.
var structDescriptors sync.Map // reflect.Type -> *structDescriptor

func structDescriptorOf(typ reflect.Type) *structDescriptor {
	if cached, ok := structDescriptors.Load(typ); ok {
		return cached.(*structDescriptor)
	}
	desc := computeStructDescriptor(typ)
	structDescriptors.Store(typ, desc)
	return desc
}

// computeStructDescriptor returns the record descriptor for typ, or nil when
// typ is not record-like. A record is a struct whose fields are all exported
// and non-embedded; anything else cannot be rebuilt by reflection and stays
// a leaf.
func computeStructDescriptor(typ reflect.Type) *structDescriptor {
	if typ == nil || typ.Kind() != reflect.Struct || typ.NumField() == 0 {
		return nil
	}
	fields := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() || field.Anonymous {
			return nil
		}
		fields = append(fields, field.Name)
	}
	return &structDescriptor{typ: typ, fields: fields}
}

// IsNamedStruct reports whether the prototype (a value or reflect.Type) is a
// named struct type the engine decomposes field-by-field.
func IsNamedStruct(prototype any) bool {
	typ, err := typeOf(prototype)
	if err != nil {
		return false
	}
	return typ.Name() != "" && structDescriptorOf(typ) != nil
}

// IsAnonStruct reports whether the prototype is an anonymous struct type.
// Anonymous structs decompose like named ones but their shape is fixed at
// construction and they cannot carry methods.
func IsAnonStruct(prototype any) bool {
	typ, err := typeOf(prototype)
	if err != nil {
		return false
	}
	return typ.Name() == "" && structDescriptorOf(typ) != nil
}
