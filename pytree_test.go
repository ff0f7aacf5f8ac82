package pytree

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-pytree/pkg/activity"
)

func exampleTree() map[string]any {
	return map[string]any{
		"b": Tuple{2, []any{3, 4}},
		"a": 1,
		"c": nil,
		"d": 5,
	}
}

func TestFlattenExampleTree(t *testing.T) {
	leaves, spec, err := Flatten(exampleTree())
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, 2, 3, 4, 5}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected leaves %v, got %v", want, leaves)
	}
	if spec.NumLeaves() != 5 {
		t.Fatalf("expected 5 leaves, got %d", spec.NumLeaves())
	}
	if spec.NumNodes() != 9 {
		t.Fatalf("expected 9 nodes, got %d", spec.NumNodes())
	}
	if got, want := spec.String(), "TreeSpec({a: *, b: (*, [*, *]), c: nil, d: *})"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestFlattenUnflattenRoundTrip(t *testing.T) {
	trees := []any{
		1,
		nil,
		[]any{},
		Tuple{1, 2, 3},
		[]any{1, Tuple{2, []any{3}}, nil},
		exampleTree(),
		NewOrderedMap().Set("z", 1).Set("a", []any{2, 3}),
	}
	for _, tree := range trees {
		leaves, spec, err := Flatten(tree)
		if err != nil {
			t.Fatalf("unexpected flatten error for %#v: %v", tree, err)
		}
		rebuilt, err := Unflatten(spec, leaves)
		if err != nil {
			t.Fatalf("unexpected unflatten error for %#v: %v", tree, err)
		}
		if !reflect.DeepEqual(tree, rebuilt) {
			t.Fatalf("round trip mismatch:\nwant: %#v\n got: %#v", tree, rebuilt)
		}
	}
}

func TestFlattenNilIsLeaf(t *testing.T) {
	leaves, spec, err := Flatten(exampleTree(), WithNilIsLeaf(true))
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, 2, 3, 4, nil, 5}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected leaves %v, got %v", want, leaves)
	}
	if !spec.NilIsLeaf() {
		t.Fatalf("expected spec to record nil-is-leaf traversal")
	}
	if got, want := spec.String(), "TreeSpec({a: *, b: (*, [*, *]), c: *, d: *}, NilIsLeaf)"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	rebuilt, err := spec.Unflatten(leaves)
	if err != nil {
		t.Fatalf("unexpected unflatten error: %v", err)
	}
	if !reflect.DeepEqual(exampleTree(), rebuilt) {
		t.Fatalf("round trip mismatch: %#v", rebuilt)
	}
}

func TestFlattenDeterministicDictOrder(t *testing.T) {
	first, _, err := Flatten(map[string]any{"x": 1, "a": 2, "m": 3})
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{2, 3, 1}; !reflect.DeepEqual(first, want) {
		t.Fatalf("expected sorted-key leaf order %v, got %v", want, first)
	}
}

func TestFlattenRecursionLimit(t *testing.T) {
	tree := any(1)
	for i := 0; i < MaxRecursionDepth+10; i++ {
		tree = []any{tree}
	}
	_, _, err := Flatten(tree)
	var limitErr *RecursionLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected RecursionLimitError, got %v", err)
	}
	if limitErr.Depth != MaxRecursionDepth {
		t.Fatalf("expected depth %d, got %d", MaxRecursionDepth, limitErr.Depth)
	}
}

func TestUnflattenLeafCountMismatch(t *testing.T) {
	_, spec, err := Flatten(exampleTree())
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	_, err = spec.Unflatten([]any{1, 2, 3, 4})
	var mismatch *LeafCountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected LeafCountMismatchError, got %v", err)
	}
	if mismatch.Expected != 5 || mismatch.Got != 4 {
		t.Fatalf("unexpected counts: %+v", mismatch)
	}
}

func TestUnflattenSubstitutesLeaves(t *testing.T) {
	leaves, spec, err := Flatten(exampleTree())
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	replaced := make([]any, len(leaves))
	for i, leaf := range leaves {
		replaced[i] = leaf.(int) * 10
	}
	rebuilt, err := spec.Unflatten(replaced)
	if err != nil {
		t.Fatalf("unexpected unflatten error: %v", err)
	}
	want := map[string]any{
		"b": Tuple{20, []any{30, 40}},
		"a": 10,
		"c": nil,
		"d": 50,
	}
	if !reflect.DeepEqual(want, rebuilt) {
		t.Fatalf("substitution mismatch:\nwant: %#v\n got: %#v", want, rebuilt)
	}
}

func TestLeavesAndStructure(t *testing.T) {
	leaves, err := Leaves(exampleTree())
	if err != nil {
		t.Fatalf("unexpected error from Leaves: %v", err)
	}
	if want := []any{1, 2, 3, 4, 5}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected leaves %v, got %v", want, leaves)
	}
	spec, err := Structure(exampleTree())
	if err != nil {
		t.Fatalf("unexpected error from Structure: %v", err)
	}
	if spec.NumLeaves() != 5 {
		t.Fatalf("expected 5 leaves, got %d", spec.NumLeaves())
	}
}

func TestIsLeafAgreesWithFlatten(t *testing.T) {
	values := []any{
		1,
		"text",
		nil,
		Tuple{1},
		[]any{1},
		map[string]any{"a": 1},
		NewOrderedMap().Set("a", 1),
	}
	for _, value := range values {
		leaf, err := IsLeaf(value)
		if err != nil {
			t.Fatalf("unexpected IsLeaf error for %#v: %v", value, err)
		}
		spec, err := Structure(value)
		if err != nil {
			t.Fatalf("unexpected Structure error for %#v: %v", value, err)
		}
		if leaf != spec.IsLeaf() {
			t.Fatalf("IsLeaf(%#v) = %v disagrees with flatten root kind %s", value, leaf, spec.Kind())
		}
	}
	if leaf, err := IsLeaf(nil, WithNilIsLeaf(true)); err != nil || !leaf {
		t.Fatalf("expected nil to be a leaf under nil-is-leaf, got %v, %v", leaf, err)
	}
}

func TestFlattenLeafPredicate(t *testing.T) {
	predicate := func(value any) (bool, error) {
		_, ok := value.([]any)
		return ok, nil
	}
	leaves, _, err := Flatten(map[string]any{"a": 1, "b": []any{2, 3}}, WithLeafPredicate(predicate))
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, []any{2, 3}}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected predicate to stop at slices, got %v", leaves)
	}
}

func TestFlattenLeafPredicateError(t *testing.T) {
	wantErr := errors.New("predicate boom")
	predicate := func(value any) (bool, error) {
		if value == nil {
			return false, nil
		}
		if _, ok := value.(int); ok {
			return false, wantErr
		}
		return false, nil
	}
	_, _, err := Flatten(exampleTree(), WithLeafPredicate(predicate))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected predicate error to surface, got %v", err)
	}
}

func TestStructRoundTrip(t *testing.T) {
	type point struct {
		X int
		Y int
	}
	leaves, spec, err := Flatten(point{X: 1, Y: 2})
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, 2}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected field leaves %v, got %v", want, leaves)
	}
	if spec.Kind() != KindStruct {
		t.Fatalf("expected struct kind, got %s", spec.Kind())
	}
	if got, want := spec.String(), "TreeSpec(point(X=*, Y=*))"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	rebuilt, err := spec.Unflatten([]any{10, 20})
	if err != nil {
		t.Fatalf("unexpected unflatten error: %v", err)
	}
	if !reflect.DeepEqual(point{X: 10, Y: 20}, rebuilt) {
		t.Fatalf("unexpected struct rebuild: %#v", rebuilt)
	}
}

func TestAnonStructRoundTrip(t *testing.T) {
	tree := struct {
		A any
		B any
	}{A: 1, B: Tuple{2, 3}}
	leaves, spec, err := Flatten(tree)
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, 2, 3}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected leaves %v, got %v", want, leaves)
	}
	if spec.Kind() != KindAnonStruct {
		t.Fatalf("expected anonymous struct kind, got %s", spec.Kind())
	}
	if got, want := spec.String(), "TreeSpec(struct(A=*, B=(*, *)))"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	rebuilt, err := spec.Unflatten(leaves)
	if err != nil {
		t.Fatalf("unexpected unflatten error: %v", err)
	}
	if !reflect.DeepEqual(tree, rebuilt) {
		t.Fatalf("unexpected rebuild: %#v", rebuilt)
	}
}

func TestUnexportedFieldStructIsLeaf(t *testing.T) {
	type opaque struct {
		hidden int
	}
	leaf, err := IsLeaf(opaque{hidden: 1})
	if err != nil {
		t.Fatalf("unexpected IsLeaf error: %v", err)
	}
	if !leaf {
		t.Fatalf("expected struct with unexported fields to stay a leaf")
	}
}

func TestFlattenEmitsActivityEvents(t *testing.T) {
	capture := &activity.CaptureHook{}
	_, _, err := Flatten(exampleTree(), WithActivityHooks(activity.Hooks{capture}))
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected one activity event, got %d", len(capture.Events))
	}
	event := capture.Events[0]
	if event.Op != "flatten" {
		t.Fatalf("expected op flatten, got %q", event.Op)
	}
	if event.NumLeaves != 5 || event.NumNodes != 9 {
		t.Fatalf("unexpected counts on event: %+v", event)
	}
	if event.ID == "" {
		t.Fatalf("expected normalized event to carry an ID")
	}
	hooks := activity.Hooks{capture}
	if err := hooks.Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected op-less events to be dropped")
	}
}

func TestUnflattenEmitsActivityEvents(t *testing.T) {
	capture := &activity.CaptureHook{}
	hooks := activity.Hooks{capture}
	leaves, spec, err := Flatten(exampleTree(), WithActivityHooks(hooks))
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if _, err := Unflatten(spec, leaves, WithActivityHooks(hooks)); err != nil {
		t.Fatalf("unexpected unflatten error: %v", err)
	}
	if len(capture.Events) != 2 {
		t.Fatalf("expected flatten and unflatten events, got %d", len(capture.Events))
	}
	if got := capture.Events[1].Op; got != "unflatten" {
		t.Fatalf("expected op unflatten, got %q", got)
	}
	if capture.Events[1].NumLeaves != spec.NumLeaves() {
		t.Fatalf("unexpected leaf count on event: %+v", capture.Events[1])
	}

	// Failed reconstructions report too.
	if _, err := Unflatten(spec, leaves[:2], WithActivityHooks(hooks)); err == nil {
		t.Fatalf("expected leaf count mismatch")
	}
	if len(capture.Events) != 3 || capture.Events[2].Error == "" {
		t.Fatalf("expected a failed unflatten event, got %+v", capture.Events)
	}
}
