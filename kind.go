package pytree

// Kind identifies how a node in a tree decomposes.
type Kind int

const (
	// KindCustom marks nodes handled by a user registration.
	KindCustom Kind = iota
	// KindLeaf marks opaque values the engine never decomposes.
	KindLeaf
	// KindNil marks the untyped nil marker when nil is not treated as a leaf.
	KindNil
	// KindTuple marks fixed-arity Tuple sequences.
	KindTuple
	// KindList marks []any nodes.
	KindList
	// KindDict marks map[string]any nodes, iterated in ascending key order.
	KindDict
	// KindOrderedMap marks *OrderedMap nodes, iterated in insertion order.
	KindOrderedMap
	// KindDefaultMap marks *DefaultMap nodes, iterated in ascending key order.
	KindDefaultMap
	// KindStruct marks named struct types whose fields are all exported.
	KindStruct
	// KindAnonStruct marks anonymous struct types whose fields are all exported.
	KindAnonStruct
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindCustom:
		return "Custom"
	case KindLeaf:
		return "Leaf"
	case KindNil:
		return "Nil"
	case KindTuple:
		return "Tuple"
	case KindList:
		return "List"
	case KindDict:
		return "Dict"
	case KindOrderedMap:
		return "OrderedMap"
	case KindDefaultMap:
		return "DefaultMap"
	case KindStruct:
		return "Struct"
	case KindAnonStruct:
		return "AnonStruct"
	default:
		return "Unknown"
	}
}
