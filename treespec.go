package pytree

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"reflect"
	"strings"
)

// TreeSpec is the immutable structural descriptor produced by Flatten. It
// records shape and metadata only; it never references the original tree or
// its leaves.
//
// Internally the spec is a post-order traversal array: children precede
// their parent and the root is the last entry. Each entry caches its
// subtree's leaf and node counts, so introspection is O(1) at the root.
type TreeSpec struct {
	traversal []specNode
	nilIsLeaf bool
	namespace string
}

func (t *TreeSpec) root() *specNode {
	return &t.traversal[len(t.traversal)-1]
}

// Kind returns the root node's kind.
func (t *TreeSpec) Kind() Kind {
	return t.root().kind
}

// IsLeaf reports whether the spec describes a single leaf.
func (t *TreeSpec) IsLeaf() bool {
	return t.root().kind == KindLeaf
}

// NumLeaves returns the number of leaves any reconstruction consumes.
func (t *TreeSpec) NumLeaves() int {
	return t.root().numLeaves
}

// NumNodes returns the total node count, composites and leaves included.
func (t *TreeSpec) NumNodes() int {
	return len(t.traversal)
}

// NumChildren returns the root node's arity.
func (t *TreeSpec) NumChildren() int {
	return t.root().arity
}

// NilIsLeaf reports how the traversal that produced this spec treated
// untyped nil.
func (t *TreeSpec) NilIsLeaf() bool {
	return t.nilIsLeaf
}

// Namespace returns the registry partition recorded during flattening. It is
// empty unless a custom registration participated.
func (t *TreeSpec) Namespace() string {
	return t.namespace
}

// Metadata returns the root node's metadata payload.
func (t *TreeSpec) Metadata() any {
	return t.root().metadata
}

// Children returns the ordered immediate child specs.
func (t *TreeSpec) Children() []*TreeSpec {
	root := t.root()
	if root.arity == 0 {
		return nil
	}
	children := make([]*TreeSpec, root.arity)
	end := len(t.traversal) - 1
	for i := root.arity - 1; i >= 0; i-- {
		size := t.traversal[end-1].numNodes
		children[i] = &TreeSpec{
			traversal: t.traversal[end-size : end],
			nilIsLeaf: t.nilIsLeaf,
			namespace: t.namespace,
		}
		end -= size
	}
	return children
}

// Unflatten rebuilds a tree of this spec's shape from a replacement leaf
// sequence. The sequence length must equal NumLeaves exactly; the check
// happens once, up front.
func (t *TreeSpec) Unflatten(leaves []any) (any, error) {
	if t == nil || len(t.traversal) == 0 {
		return nil, fmt.Errorf("pytree: cannot unflatten a nil treespec")
	}
	if len(leaves) != t.NumLeaves() {
		return nil, &LeafCountMismatchError{Expected: t.NumLeaves(), Got: len(leaves)}
	}
	agenda := make([]any, 0, 4)
	next := 0
	for i := range t.traversal {
		node := &t.traversal[i]
		if node.kind == KindLeaf {
			agenda = append(agenda, leaves[next])
			next++
			continue
		}
		children := make([]any, node.arity)
		copy(children, agenda[len(agenda)-node.arity:])
		value, err := node.make(children)
		if err != nil {
			return nil, err
		}
		agenda = agenda[:len(agenda)-node.arity]
		agenda = append(agenda, value)
	}
	return agenda[0], nil
}

// make rebuilds one composite node from its reconstructed children.
func (n *specNode) make(children []any) (any, error) {
	switch n.kind {
	case KindNil:
		return nil, nil

	case KindTuple:
		return Tuple(children), nil

	case KindList:
		return children, nil

	case KindDict:
		keys := n.metadata.([]string)
		dict := make(map[string]any, len(keys))
		for i, key := range keys {
			dict[key] = children[i]
		}
		return dict, nil

	case KindOrderedMap:
		keys := n.metadata.([]string)
		om := NewOrderedMap()
		for i, key := range keys {
			om.Set(key, children[i])
		}
		return om, nil

	case KindDefaultMap:
		md := n.metadata.(defaultMapMetadata)
		dm := NewDefaultMap(md.factory)
		for i, key := range md.keys {
			dm.Set(key, children[i])
		}
		return dm, nil

	case KindStruct, KindAnonStruct:
		desc := n.metadata.(*structDescriptor)
		rv := reflect.New(desc.typ).Elem()
		for i, child := range children {
			if child == nil {
				continue
			}
			cv := reflect.ValueOf(child)
			field := rv.Field(i)
			if !cv.Type().AssignableTo(field.Type()) {
				return nil, fmt.Errorf("pytree: cannot place %T into field %s of %s",
					child, desc.fields[i], desc.typ)
			}
			field.Set(cv)
		}
		return rv.Interface(), nil

	case KindCustom:
		return n.custom.Unflatten(n.metadata, children)

	default:
		return nil, fmt.Errorf("pytree: cannot rebuild a node of kind %s", n.kind)
	}
}

// Equal reports structural equality: same kinds, arities, metadata (by
// value), nil handling, and namespace, compared node by node.
func (t *TreeSpec) Equal(other *TreeSpec) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	if t.nilIsLeaf != other.nilIsLeaf || t.namespace != other.namespace {
		return false
	}
	if len(t.traversal) != len(other.traversal) {
		return false
	}
	for i := range t.traversal {
		a, b := &t.traversal[i], &other.traversal[i]
		if a.kind != b.kind || a.arity != b.arity {
			return false
		}
		if (a.custom == nil) != (b.custom == nil) {
			return false
		}
		if a.custom != nil && (a.custom.Type != b.custom.Type || a.custom.Namespace != b.custom.Namespace) {
			return false
		}
		if !metadataEqual(a.metadata, b.metadata) {
			return false
		}
	}
	return true
}

func metadataEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if eq, ok := a.(interface{ EqualMetadata(any) bool }); ok {
		return eq.EqualMetadata(b)
	}
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() == reflect.Func && bv.Kind() == reflect.Func {
		return av.Pointer() == bv.Pointer()
	}
	return reflect.DeepEqual(a, b)
}

// Hashable lets custom metadata types participate in treespec hashing.
type Hashable interface {
	TreeHash() uint64
}

// Hash returns a structural hash consistent with Equal. It fails with an
// *UnhashableMetadataError when any node carries metadata outside the
// hashable set (nil, booleans, strings, numbers, reflect.Type, funcs,
// Hashable implementations, and slices or all-exported structs thereof).
func (t *TreeSpec) Hash() (uint64, error) {
	h := fnv.New64a()
	var scratch [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(scratch[:], uint64(v))
		h.Write(scratch[:])
	}
	for i := range t.traversal {
		node := &t.traversal[i]
		writeInt(int(node.kind))
		writeInt(node.arity)
		if node.custom != nil {
			io.WriteString(h, node.custom.Type.String())
			io.WriteString(h, node.custom.Namespace)
		}
		if err := hashValue(h, node.metadata); err != nil {
			return 0, err
		}
	}
	if t.nilIsLeaf {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	io.WriteString(h, t.namespace)
	return h.Sum64(), nil
}

// metadataHasher is implemented by internal metadata carriers that hold
// unexported fields.
type metadataHasher interface {
	hashMetadataInto(w io.Writer)
}

func (m defaultMapMetadata) hashMetadataInto(w io.Writer) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(funcPointer(m.factory)))
	w.Write(scratch[:])
	for _, key := range m.keys {
		io.WriteString(w, key)
		w.Write([]byte{0})
	}
}

func (d *structDescriptor) hashMetadataInto(w io.Writer) {
	io.WriteString(w, d.typ.String())
	for _, field := range d.fields {
		io.WriteString(w, field)
		w.Write([]byte{0})
	}
}

func hashValue(w io.Writer, value any) error {
	if value == nil {
		w.Write([]byte{'n'})
		return nil
	}
	if mh, ok := value.(metadataHasher); ok {
		mh.hashMetadataInto(w)
		return nil
	}
	if hv, ok := value.(Hashable); ok {
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], hv.TreeHash())
		w.Write(scratch[:])
		return nil
	}
	if typ, ok := value.(reflect.Type); ok {
		io.WriteString(w, typ.String())
		return nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		fmt.Fprintf(w, "%v|", value)
		return nil
	case reflect.Func:
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], uint64(rv.Pointer()))
		w.Write(scratch[:])
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := hashValue(w, rv.Index(i).Interface()); err != nil {
				return err
			}
			w.Write([]byte{0})
		}
		return nil
	case reflect.Struct:
		typ := rv.Type()
		for i := 0; i < typ.NumField(); i++ {
			if !typ.Field(i).IsExported() {
				return &UnhashableMetadataError{Metadata: value}
			}
			if err := hashValue(w, rv.Field(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	default:
		return &UnhashableMetadataError{Metadata: value}
	}
}

// String renders the spec in canonical form: a placeholder for each leaf and
// literal container syntax for composites, with suffixes recording the nil
// policy and namespace.
//
//	TreeSpec({a: *, b: (*, [*, *]), c: nil, d: *})
func (t *TreeSpec) String() string {
	var b strings.Builder
	b.WriteString("TreeSpec(")
	t.render(&b)
	if t.nilIsLeaf {
		b.WriteString(", NilIsLeaf")
	}
	if t.namespace != "" {
		fmt.Fprintf(&b, ", namespace=%q", t.namespace)
	}
	b.WriteString(")")
	return b.String()
}

func (t *TreeSpec) render(b *strings.Builder) {
	root := t.root()
	children := t.Children()
	renderChildren := func(sep string) {
		for i, child := range children {
			if i > 0 {
				b.WriteString(sep)
			}
			child.render(b)
		}
	}

	switch root.kind {
	case KindLeaf:
		b.WriteString("*")

	case KindNil:
		b.WriteString("nil")

	case KindTuple:
		b.WriteString("(")
		renderChildren(", ")
		if root.arity == 1 {
			b.WriteString(",")
		}
		b.WriteString(")")

	case KindList:
		b.WriteString("[")
		renderChildren(", ")
		b.WriteString("]")

	case KindDict, KindOrderedMap, KindDefaultMap:
		if root.kind == KindOrderedMap {
			b.WriteString("OrderedMap(")
		} else if root.kind == KindDefaultMap {
			b.WriteString("DefaultMap(")
		}
		keys := root.keyList()
		b.WriteString("{")
		for i, child := range children {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(keys[i])
			b.WriteString(": ")
			child.render(b)
		}
		b.WriteString("}")
		if root.kind != KindDict {
			b.WriteString(")")
		}

	case KindStruct, KindAnonStruct:
		desc := root.metadata.(*structDescriptor)
		if root.kind == KindStruct {
			b.WriteString(desc.typ.Name())
		} else {
			b.WriteString("struct")
		}
		b.WriteString("(")
		for i, child := range children {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(desc.fields[i])
			b.WriteString("=")
			child.render(b)
		}
		b.WriteString(")")

	case KindCustom:
		b.WriteString(root.custom.Type.String())
		b.WriteString("(")
		renderChildren(", ")
		b.WriteString(")")
	}
}

// keyList returns the child key names for map-like nodes.
func (n *specNode) keyList() []string {
	switch md := n.metadata.(type) {
	case []string:
		return md
	case defaultMapMetadata:
		return md.keys
	default:
		return nil
	}
}
