package pytree

import (
	"context"
	"time"

	"github.com/goliatone/go-pytree/pkg/activity"
)

// MaxRecursionDepth bounds traversal depth. Trees nested deeper fail with a
// *RecursionLimitError instead of exhausting the stack.
const MaxRecursionDepth = 1000

// LeafPredicate decides whether the engine should stop decomposing a value.
// It is invoked at most once per visited node; a returned error aborts the
// traversal with no partial result.
type LeafPredicate func(value any) (bool, error)

// Option configures a traversal call.
type Option func(*config)

type config struct {
	predicate LeafPredicate
	nilIsLeaf bool
	namespace string
	registry  *Registry
	hooks     activity.Hooks
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithLeafPredicate installs a per-call override of what counts as a leaf.
func WithLeafPredicate(predicate LeafPredicate) Option {
	return func(cfg *config) {
		cfg.predicate = predicate
	}
}

// WithNilIsLeaf controls how untyped nil is traversed: as a leaf when true,
// as a zero-arity structural node when false (the default).
func WithNilIsLeaf(nilIsLeaf bool) Option {
	return func(cfg *config) {
		cfg.nilIsLeaf = nilIsLeaf
	}
}

// WithNamespace selects the registry partition consulted before the global
// one.
func WithNamespace(namespace string) Option {
	return func(cfg *config) {
		cfg.namespace = namespace
	}
}

// WithRegistry routes lookups through an explicit registry instead of the
// shared process registry.
func WithRegistry(registry *Registry) Option {
	return func(cfg *config) {
		cfg.registry = registry
	}
}

// WithActivityHooks attaches hooks notified after each traversal run.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *config) {
		cfg.hooks = hooks
	}
}

func (c *config) registryOrDefault() *Registry {
	if c.registry != nil {
		return c.registry
	}
	return DefaultRegistry()
}

func (c *config) emit(op string, spec *TreeSpec, start time.Time, err error) {
	if !c.hooks.Enabled() {
		return
	}
	event := activity.Event{
		Op:         op,
		Namespace:  c.namespace,
		Duration:   time.Since(start),
		OccurredAt: time.Now(),
	}
	if spec != nil {
		event.NumLeaves = spec.NumLeaves()
		event.NumNodes = spec.NumNodes()
	}
	if err != nil {
		event.Error = err.Error()
	}
	_ = c.hooks.Notify(context.Background(), event)
}

// Flatten decomposes tree into a flat leaf sequence and the treespec that
// rebuilds an isomorphic tree from a replacement sequence. Leaf order is a
// deterministic left-to-right depth-first traversal.
func Flatten(tree any, opts ...Option) ([]any, *TreeSpec, error) {
	cfg := applyOptions(opts)
	start := time.Now()
	f := &flattener{cfg: &cfg}
	if err := f.flatten(tree, 0); err != nil {
		cfg.emit("flatten", nil, start, err)
		return nil, nil, err
	}
	namespace := ""
	if f.foundCustom {
		namespace = cfg.namespace
	}
	spec := &TreeSpec{
		traversal: f.traversal,
		nilIsLeaf: cfg.nilIsLeaf,
		namespace: namespace,
	}
	cfg.emit("flatten", spec, start, nil)
	return f.leaves, spec, nil
}

// Unflatten rebuilds a tree from the treespec and a leaf sequence. The
// inverse of Flatten. Options affect observation only; the reconstruction
// itself is fully determined by the spec.
func Unflatten(spec *TreeSpec, leaves []any, opts ...Option) (any, error) {
	cfg := applyOptions(opts)
	start := time.Now()
	tree, err := spec.Unflatten(leaves)
	cfg.emit("unflatten", spec, start, err)
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Leaves returns the flattened leaf sequence of tree.
func Leaves(tree any, opts ...Option) ([]any, error) {
	leaves, _, err := Flatten(tree, opts...)
	return leaves, err
}

// Structure returns the treespec of tree.
func Structure(tree any, opts ...Option) (*TreeSpec, error) {
	_, spec, err := Flatten(tree, opts...)
	return spec, err
}

// IsLeaf evaluates only the root of tree using the same rules Flatten
// applies at every node: leaf predicate, nil handling, then registry lookup.
func IsLeaf(tree any, opts ...Option) (bool, error) {
	cfg := applyOptions(opts)
	if cfg.predicate != nil {
		leaf, err := cfg.predicate(tree)
		if err != nil {
			return false, err
		}
		if leaf {
			return true, nil
		}
	}
	if tree == nil {
		return cfg.nilIsLeaf, nil
	}
	kind, _ := cfg.registryOrDefault().lookupKind(typeOfValue(tree), cfg.namespace)
	return kind == KindLeaf, nil
}

// FlattenWithAccessors flattens tree and pairs each leaf with the accessor
// that retrieves it from the original root.
func FlattenWithAccessors(tree any, opts ...Option) ([]Accessor, []any, *TreeSpec, error) {
	leaves, spec, err := Flatten(tree, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	return spec.Accessors(), leaves, spec, nil
}
