package pytree

import (
	"fmt"
	"reflect"
)

// RecursionLimitError reports a traversal that exceeded MaxRecursionDepth.
type RecursionLimitError struct {
	Depth int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("pytree: maximum recursion depth %d exceeded while traversing the tree", e.Depth)
}

// LeafCountMismatchError reports an Unflatten call whose leaf sequence does
// not match the treespec's recorded leaf count.
type LeafCountMismatchError struct {
	Expected int
	Got      int
}

func (e *LeafCountMismatchError) Error() string {
	return fmt.Sprintf("pytree: treespec expects %d leaves, got %d", e.Expected, e.Got)
}

// DuplicateRegistrationError reports a second registration for the same
// (type, namespace) pair.
type DuplicateRegistrationError struct {
	Type      reflect.Type
	Namespace string
}

func (e *DuplicateRegistrationError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("pytree: type %s is already registered in the global namespace", e.Type)
	}
	return fmt.Sprintf("pytree: type %s is already registered in namespace %q", e.Type, e.Namespace)
}

// RegistrationNotFoundError reports an Unregister call for a type that has
// no registration in the namespace.
type RegistrationNotFoundError struct {
	Type      reflect.Type
	Namespace string
}

func (e *RegistrationNotFoundError) Error() string {
	if e.Namespace == "" {
		return fmt.Sprintf("pytree: type %s is not registered in the global namespace", e.Type)
	}
	return fmt.Sprintf("pytree: type %s is not registered in namespace %q", e.Type, e.Namespace)
}

// UnhashableMetadataError reports a Hash call on a treespec carrying
// metadata that cannot be hashed.
type UnhashableMetadataError struct {
	Metadata any
}

func (e *UnhashableMetadataError) Error() string {
	return fmt.Sprintf("pytree: metadata of type %T is not hashable", e.Metadata)
}

// AccessorPathError reports an accessor entry that does not match the
// runtime shape it was applied to.
type AccessorPathError struct {
	Entry  Entry
	Target any
	Err    error
}

func (e *AccessorPathError) Error() string {
	return fmt.Sprintf("pytree: accessor step %s does not apply to %T: %v", e.Entry, e.Target, e.Err)
}

func (e *AccessorPathError) Unwrap() error {
	return e.Err
}

func pathError(entry Entry, target any, format string, args ...any) error {
	return &AccessorPathError{
		Entry:  entry,
		Target: target,
		Err:    fmt.Errorf(format, args...),
	}
}
