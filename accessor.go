package pytree

import (
	"fmt"
	"hash/fnv"
	"io"
	"reflect"
	"sort"
	"strings"
)

// Entry is one step of a root-to-leaf path.
type Entry interface {
	// Apply performs the access step against value.
	Apply(value any) (any, error)
	// String renders the step as a chained-access fragment.
	String() string
}

// GetAttrEntry accesses a struct field by name.
type GetAttrEntry struct {
	Name string
}

func (e GetAttrEntry) Apply(value any) (any, error) {
	return structFieldByName(e, value, e.Name)
}

func (e GetAttrEntry) String() string {
	return "." + e.Name
}

// GetItemEntry performs a generic subscript: an integer key indexes
// sequences, a string key looks up map-like containers.
type GetItemEntry struct {
	Key any
}

func (e GetItemEntry) Apply(value any) (any, error) {
	switch key := e.Key.(type) {
	case int:
		return sequenceIndex(e, value, key)
	case string:
		return mappingLookup(e, value, key)
	default:
		return nil, pathError(e, value, "unsupported subscript key type %T", e.Key)
	}
}

func (e GetItemEntry) String() string {
	return fmt.Sprintf("[%#v]", e.Key)
}

// SequenceEntry accesses the i-th element of a positional sequence.
type SequenceEntry struct {
	Index int
}

func (e SequenceEntry) Apply(value any) (any, error) {
	return sequenceIndex(e, value, e.Index)
}

func (e SequenceEntry) String() string {
	return fmt.Sprintf("[%d]", e.Index)
}

// MappingEntry accesses the value stored under a key of a map-like
// container.
type MappingEntry struct {
	Key string
}

func (e MappingEntry) Apply(value any) (any, error) {
	return mappingLookup(e, value, e.Key)
}

func (e MappingEntry) String() string {
	return fmt.Sprintf("[%q]", e.Key)
}

// NamedFieldEntry accesses a named struct's field by declared position,
// verifying the field name still matches.
type NamedFieldEntry struct {
	Index int
	Name  string
}

func (e NamedFieldEntry) Apply(value any) (any, error) {
	rv, err := structValue(e, value)
	if err != nil {
		return nil, err
	}
	if e.Index < 0 || e.Index >= rv.NumField() {
		return nil, pathError(e, value, "field index %d out of range for %s", e.Index, rv.Type())
	}
	field := rv.Type().Field(e.Index)
	if e.Name != "" && field.Name != e.Name {
		return nil, pathError(e, value, "field %d of %s is named %s", e.Index, rv.Type(), field.Name)
	}
	if !field.IsExported() {
		return nil, pathError(e, value, "field %s of %s is unexported", field.Name, rv.Type())
	}
	return rv.Field(e.Index).Interface(), nil
}

func (e NamedFieldEntry) String() string {
	return "." + e.Name
}

// IndexFieldEntry accesses a struct field by declared position only, the
// entry variant produced for anonymous struct nodes.
type IndexFieldEntry struct {
	Index int
}

func (e IndexFieldEntry) Apply(value any) (any, error) {
	rv, err := structValue(e, value)
	if err != nil {
		return nil, err
	}
	if e.Index < 0 || e.Index >= rv.NumField() {
		return nil, pathError(e, value, "field index %d out of range for %s", e.Index, rv.Type())
	}
	if !rv.Type().Field(e.Index).IsExported() {
		return nil, pathError(e, value, "field %d of %s is unexported", e.Index, rv.Type())
	}
	return rv.Field(e.Index).Interface(), nil
}

func (e IndexFieldEntry) String() string {
	return fmt.Sprintf(".field(%d)", e.Index)
}

// DeclaredFieldEntry accesses a declared field by name, for custom record
// types registered with attribute-style paths.
type DeclaredFieldEntry struct {
	Name string
}

func (e DeclaredFieldEntry) Apply(value any) (any, error) {
	return structFieldByName(e, value, e.Name)
}

func (e DeclaredFieldEntry) String() string {
	return "." + e.Name
}

// FlattenedEntry addresses the i-th decomposed child of a node whose
// handler declares no richer path variant. Application decomposes the node
// one level through the default registry's global partition.
type FlattenedEntry struct {
	Index int
}

func (e FlattenedEntry) Apply(value any) (any, error) {
	children, ok := childrenOf(value)
	if !ok {
		return nil, pathError(e, value, "value does not decompose")
	}
	if e.Index < 0 || e.Index >= len(children) {
		return nil, pathError(e, value, "child index %d out of range (%d children)", e.Index, len(children))
	}
	return children[e.Index], nil
}

func (e FlattenedEntry) String() string {
	return fmt.Sprintf("[#%d]", e.Index)
}

// AutoEntry defers variant selection until application: against a concrete
// value it resolves to the most specific entry that applies.
type AutoEntry struct {
	Index int
}

func (e AutoEntry) Apply(value any) (any, error) {
	resolved, err := e.resolve(value)
	if err != nil {
		return nil, err
	}
	return resolved.Apply(value)
}

// resolve picks the entry variant matching value's runtime shape.
func (e AutoEntry) resolve(value any) (Entry, error) {
	switch v := value.(type) {
	case Tuple, []any:
		return SequenceEntry{Index: e.Index}, nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return e.keyed(value, keys)
	case *OrderedMap:
		return e.keyed(value, v.Keys())
	case *DefaultMap:
		return e.keyed(value, v.Keys())
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return SequenceEntry{Index: e.Index}, nil
	case reflect.Struct:
		if desc := structDescriptorOf(rv.Type()); desc != nil {
			if e.Index < 0 || e.Index >= len(desc.fields) {
				return nil, pathError(e, value, "field index %d out of range for %s", e.Index, rv.Type())
			}
			if rv.Type().Name() != "" {
				return NamedFieldEntry{Index: e.Index, Name: desc.fields[e.Index]}, nil
			}
			return IndexFieldEntry{Index: e.Index}, nil
		}
	}
	return FlattenedEntry{Index: e.Index}, nil
}

func (e AutoEntry) keyed(value any, keys []string) (Entry, error) {
	if e.Index < 0 || e.Index >= len(keys) {
		return nil, pathError(e, value, "key index %d out of range (%d keys)", e.Index, len(keys))
	}
	return MappingEntry{Key: keys[e.Index]}, nil
}

func (e AutoEntry) String() string {
	return fmt.Sprintf("[?%d]", e.Index)
}

// structValue unwraps value into an addressable struct reflect.Value,
// following one pointer indirection.
func structValue(entry Entry, value any) (reflect.Value, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, pathError(entry, value, "nil pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, pathError(entry, value, "not a struct")
	}
	return rv, nil
}

func structFieldByName(entry Entry, value any, name string) (any, error) {
	rv, err := structValue(entry, value)
	if err != nil {
		return nil, err
	}
	field, ok := rv.Type().FieldByName(name)
	if !ok {
		return nil, pathError(entry, value, "%s has no field %s", rv.Type(), name)
	}
	if !field.IsExported() {
		return nil, pathError(entry, value, "field %s of %s is unexported", name, rv.Type())
	}
	return rv.FieldByIndex(field.Index).Interface(), nil
}

func sequenceIndex(entry Entry, value any, index int) (any, error) {
	switch v := value.(type) {
	case Tuple:
		if index < 0 || index >= len(v) {
			return nil, pathError(entry, value, "index %d out of range (len %d)", index, len(v))
		}
		return v[index], nil
	case []any:
		if index < 0 || index >= len(v) {
			return nil, pathError(entry, value, "index %d out of range (len %d)", index, len(v))
		}
		return v[index], nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, pathError(entry, value, "not an indexable sequence")
	}
	if index < 0 || index >= rv.Len() {
		return nil, pathError(entry, value, "index %d out of range (len %d)", index, rv.Len())
	}
	return rv.Index(index).Interface(), nil
}

func mappingLookup(entry Entry, value any, key string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		child, ok := v[key]
		if !ok {
			return nil, pathError(entry, value, "missing key %q", key)
		}
		return child, nil
	case *OrderedMap:
		child, ok := v.Get(key)
		if !ok {
			return nil, pathError(entry, value, "missing key %q", key)
		}
		return child, nil
	case *DefaultMap:
		child, ok := v.Lookup(key)
		if !ok {
			return nil, pathError(entry, value, "missing key %q", key)
		}
		return child, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, pathError(entry, value, "not a string-keyed mapping")
	}
	child := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !child.IsValid() {
		return nil, pathError(entry, value, "missing key %q", key)
	}
	return child.Interface(), nil
}

// childrenOf decomposes value one level using the default registry's global
// partition, the resolution FlattenedEntry relies on.
func childrenOf(value any) ([]any, bool) {
	if value == nil {
		return nil, true
	}
	kind, reg := DefaultRegistry().lookupKind(reflect.TypeOf(value), "")
	switch kind {
	case KindTuple:
		return value.(Tuple), true
	case KindList:
		return value.([]any), true
	case KindDict:
		dict := value.(map[string]any)
		keys := make([]string, 0, len(dict))
		for key := range dict {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		children := make([]any, len(keys))
		for i, key := range keys {
			children[i] = dict[key]
		}
		return children, true
	case KindOrderedMap:
		om := value.(*OrderedMap)
		keys := om.Keys()
		children := make([]any, len(keys))
		for i, key := range keys {
			children[i], _ = om.Get(key)
		}
		return children, true
	case KindDefaultMap:
		dm := value.(*DefaultMap)
		keys := dm.Keys()
		children := make([]any, len(keys))
		for i, key := range keys {
			children[i], _ = dm.Lookup(key)
		}
		return children, true
	case KindStruct, KindAnonStruct:
		rv := reflect.ValueOf(value)
		children := make([]any, rv.NumField())
		for i := range children {
			children[i] = rv.Field(i).Interface()
		}
		return children, true
	case KindCustom:
		children, _, _, err := reg.Flatten(value)
		if err != nil {
			return nil, false
		}
		return children, true
	default:
		return nil, false
	}
}

// Accessor is an ordered entry sequence locating one leaf or subtree from a
// tree's root. The zero value addresses the root itself.
type Accessor struct {
	entries []Entry
}

// NewAccessor constructs an accessor from the given entries.
func NewAccessor(entries ...Entry) Accessor {
	return Accessor{entries: append([]Entry(nil), entries...)}
}

// Entries returns a copy of the accessor's entry sequence.
func (a Accessor) Entries() []Entry {
	return append([]Entry(nil), a.entries...)
}

// Len returns the number of entries.
func (a Accessor) Len() int {
	return len(a.entries)
}

// Apply walks the entries from root, failing with an *AccessorPathError at
// the first step that does not match the runtime shape.
func (a Accessor) Apply(root any) (any, error) {
	value := root
	for _, entry := range a.entries {
		next, err := entry.Apply(value)
		if err != nil {
			return nil, err
		}
		value = next
	}
	return value, nil
}

// Extend returns a new accessor with entry appended.
func (a Accessor) Extend(entry Entry) Accessor {
	entries := make([]Entry, 0, len(a.entries)+1)
	entries = append(entries, a.entries...)
	entries = append(entries, entry)
	return Accessor{entries: entries}
}

// Equal reports entry-sequence equality.
func (a Accessor) Equal(other Accessor) bool {
	if len(a.entries) != len(other.entries) {
		return false
	}
	for i := range a.entries {
		x, y := a.entries[i], other.entries[i]
		if reflect.TypeOf(x) != reflect.TypeOf(y) {
			return false
		}
		if !reflect.DeepEqual(x, y) {
			return false
		}
	}
	return true
}

// Hash returns a hash consistent with Equal.
func (a Accessor) Hash() uint64 {
	h := fnv.New64a()
	for _, entry := range a.entries {
		io.WriteString(h, reflect.TypeOf(entry).String())
		io.WriteString(h, entry.String())
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// String renders the accessor as a chained access expression rooted at
// "tree", e.g. tree["b"][1][1].
func (a Accessor) String() string {
	var b strings.Builder
	b.WriteString("tree")
	for _, entry := range a.entries {
		b.WriteString(entry.String())
	}
	return b.String()
}

// Accessors returns one accessor per leaf, in the same order Flatten emits
// leaves: the i-th accessor applied to the original tree yields the i-th
// flattened leaf.
func (t *TreeSpec) Accessors() []Accessor {
	out := make([]Accessor, 0, t.NumLeaves())
	t.appendAccessors(&out, nil)
	return out
}

func (t *TreeSpec) appendAccessors(out *[]Accessor, prefix []Entry) {
	root := t.root()
	if root.kind == KindLeaf {
		*out = append(*out, NewAccessor(prefix...))
		return
	}
	for i, child := range t.Children() {
		extended := make([]Entry, 0, len(prefix)+1)
		extended = append(extended, prefix...)
		extended = append(extended, root.entryFor(i))
		child.appendAccessors(out, extended)
	}
}

// entryFor returns the path entry addressing child index of this node.
func (n *specNode) entryFor(index int) Entry {
	switch n.kind {
	case KindTuple, KindList:
		return SequenceEntry{Index: index}
	case KindDict, KindOrderedMap, KindDefaultMap:
		return MappingEntry{Key: n.keyList()[index]}
	case KindStruct:
		desc := n.metadata.(*structDescriptor)
		return NamedFieldEntry{Index: index, Name: desc.fields[index]}
	case KindAnonStruct:
		return IndexFieldEntry{Index: index}
	case KindCustom:
		if n.entries != nil {
			if entry := n.entries[index]; entry != nil {
				return entry
			}
			return FlattenedEntry{Index: index}
		}
		if n.custom != nil && n.custom.Entry != nil {
			if entry := n.custom.Entry(n.metadata, index); entry != nil {
				return entry
			}
		}
		return AutoEntry{Index: index}
	default:
		return FlattenedEntry{Index: index}
	}
}
