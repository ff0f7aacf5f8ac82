package pytree

import (
	"fmt"
	"reflect"
	"sort"
)

// specNode is one entry of a treespec's post-order traversal.
type specNode struct {
	kind      Kind
	arity     int
	metadata  any
	entries   []Entry
	custom    *Registration
	numLeaves int
	numNodes  int
}

type flattener struct {
	cfg         *config
	traversal   []specNode
	leaves      []any
	foundCustom bool
}

func typeOfValue(value any) reflect.Type {
	return reflect.TypeOf(value)
}

// flatten appends node's leaves and traversal entries in depth-first order.
// Children precede their parent in the traversal.
func (f *flattener) flatten(node any, depth int) error {
	if depth > MaxRecursionDepth {
		return &RecursionLimitError{Depth: MaxRecursionDepth}
	}
	startNodes := len(f.traversal)
	startLeaves := len(f.leaves)
	n := specNode{kind: KindLeaf}

	predicateLeaf := false
	if f.cfg.predicate != nil {
		leaf, err := f.cfg.predicate(node)
		if err != nil {
			return err
		}
		predicateLeaf = leaf
	}

	switch {
	case predicateLeaf:
		f.leaves = append(f.leaves, node)
	case node == nil:
		if f.cfg.nilIsLeaf {
			f.leaves = append(f.leaves, node)
		} else {
			n.kind = KindNil
		}
	default:
		kind, reg := f.cfg.registryOrDefault().lookupKind(typeOfValue(node), f.cfg.namespace)
		n.kind = kind
		if err := f.flattenKind(&n, kind, reg, node, depth); err != nil {
			return err
		}
	}

	n.numLeaves = len(f.leaves) - startLeaves
	n.numNodes = len(f.traversal) - startNodes + 1
	f.traversal = append(f.traversal, n)
	return nil
}

func (f *flattener) flattenKind(n *specNode, kind Kind, reg *Registration, node any, depth int) error {
	switch kind {
	case KindLeaf:
		f.leaves = append(f.leaves, node)

	case KindTuple:
		tuple := node.(Tuple)
		n.arity = len(tuple)
		for _, child := range tuple {
			if err := f.flatten(child, depth+1); err != nil {
				return err
			}
		}

	case KindList:
		list := node.([]any)
		n.arity = len(list)
		for _, child := range list {
			if err := f.flatten(child, depth+1); err != nil {
				return err
			}
		}

	case KindDict:
		dict := node.(map[string]any)
		keys := make([]string, 0, len(dict))
		for key := range dict {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		n.arity = len(keys)
		n.metadata = keys
		for _, key := range keys {
			if err := f.flatten(dict[key], depth+1); err != nil {
				return err
			}
		}

	case KindOrderedMap:
		om := node.(*OrderedMap)
		keys := om.Keys()
		n.arity = len(keys)
		n.metadata = keys
		for _, key := range keys {
			child, _ := om.Get(key)
			if err := f.flatten(child, depth+1); err != nil {
				return err
			}
		}

	case KindDefaultMap:
		dm := node.(*DefaultMap)
		keys := dm.Keys()
		n.arity = len(keys)
		n.metadata = defaultMapMetadata{factory: dm.Factory(), keys: keys}
		for _, key := range keys {
			child, _ := dm.Lookup(key)
			if err := f.flatten(child, depth+1); err != nil {
				return err
			}
		}

	case KindStruct, KindAnonStruct:
		rv := reflect.ValueOf(node)
		desc := structDescriptorOf(rv.Type())
		n.arity = len(desc.fields)
		n.metadata = desc
		for i := range desc.fields {
			if err := f.flatten(rv.Field(i).Interface(), depth+1); err != nil {
				return err
			}
		}

	case KindCustom:
		f.foundCustom = true
		children, metadata, entries, err := reg.Flatten(node)
		if err != nil {
			return err
		}
		if entries != nil && len(entries) != len(children) {
			return fmt.Errorf("pytree: flatten function for %s returned %d path entries for %d children",
				reg.Type, len(entries), len(children))
		}
		n.arity = len(children)
		n.metadata = metadata
		n.entries = entries
		n.custom = reg
		for _, child := range children {
			if err := f.flatten(child, depth+1); err != nil {
				return err
			}
		}

	case KindNil:
		// Zero arity, no leaf output.
	}
	return nil
}

// defaultMapMetadata records a DefaultMap's factory alongside its sorted
// keys. Factories compare and hash by code pointer.
type defaultMapMetadata struct {
	factory Factory
	keys    []string
}

func (m defaultMapMetadata) EqualMetadata(other any) bool {
	o, ok := other.(defaultMapMetadata)
	if !ok {
		return false
	}
	if funcPointer(m.factory) != funcPointer(o.factory) {
		return false
	}
	if len(m.keys) != len(o.keys) {
		return false
	}
	for i := range m.keys {
		if m.keys[i] != o.keys[i] {
			return false
		}
	}
	return true
}

func funcPointer(fn any) uintptr {
	if fn == nil {
		return 0
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func || rv.IsNil() {
		return 0
	}
	return rv.Pointer()
}
