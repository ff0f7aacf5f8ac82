package pytree

import (
	"reflect"
	"testing"
)

func TestOrderedMapSetKeepsPosition(t *testing.T) {
	om := NewOrderedMap().Set("a", 1).Set("b", 2).Set("a", 3)
	if !reflect.DeepEqual(om.Keys(), []string{"a", "b"}) {
		t.Fatalf("expected update to keep key position, got %v", om.Keys())
	}
	if value, ok := om.Get("a"); !ok || value != 3 {
		t.Fatalf("expected updated value 3, got %v", value)
	}
	if om.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", om.Len())
	}
}

func TestOrderedMapDelete(t *testing.T) {
	om := NewOrderedMap().Set("a", 1).Set("b", 2).Set("c", 3)
	if !om.Delete("b") {
		t.Fatalf("expected delete of present key to succeed")
	}
	if om.Delete("b") {
		t.Fatalf("expected second delete to report missing key")
	}
	if !reflect.DeepEqual(om.Keys(), []string{"a", "c"}) {
		t.Fatalf("expected remaining keys in order, got %v", om.Keys())
	}
}

func TestOrderedMapNilReceiver(t *testing.T) {
	var om *OrderedMap
	if _, ok := om.Get("a"); ok {
		t.Fatalf("expected lookup on nil map to miss")
	}
	if om.Delete("a") {
		t.Fatalf("expected delete on nil map to report missing")
	}
	if om.Keys() != nil || om.Len() != 0 {
		t.Fatalf("expected empty key set on nil map")
	}
}

func TestDefaultMapMaterializesDefaults(t *testing.T) {
	dm := NewDefaultMap(func() any { return []any{} })
	value := dm.Get("missing")
	if !reflect.DeepEqual(value, []any{}) {
		t.Fatalf("expected factory default, got %#v", value)
	}
	if _, ok := dm.Lookup("missing"); !ok {
		t.Fatalf("expected Get to store the materialized default")
	}
	if _, ok := dm.Lookup("untouched"); ok {
		t.Fatalf("expected Lookup to avoid materializing defaults")
	}
}

func TestDefaultMapKeysSorted(t *testing.T) {
	dm := NewDefaultMap(nil).Set("z", 1).Set("a", 2).Set("m", 3)
	if !reflect.DeepEqual(dm.Keys(), []string{"a", "m", "z"}) {
		t.Fatalf("expected sorted keys, got %v", dm.Keys())
	}
	if dm.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d", dm.Len())
	}
}

func TestDefaultMapRoundTripKeepsFactory(t *testing.T) {
	factory := func() any { return 0 }
	dm := NewDefaultMap(factory).Set("a", 1).Set("b", 2)
	leaves, spec, err := Flatten(dm)
	if err != nil {
		t.Fatalf("unexpected flatten error: %v", err)
	}
	if want := []any{1, 2}; !reflect.DeepEqual(leaves, want) {
		t.Fatalf("expected sorted-key leaves %v, got %v", want, leaves)
	}
	if got, want := spec.String(), "TreeSpec(DefaultMap({a: *, b: *}))"; got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
	rebuilt, err := spec.Unflatten([]any{10, 20})
	if err != nil {
		t.Fatalf("unexpected unflatten error: %v", err)
	}
	out, ok := rebuilt.(*DefaultMap)
	if !ok {
		t.Fatalf("expected *DefaultMap, got %T", rebuilt)
	}
	if got := out.Get("fresh"); got != 0 {
		t.Fatalf("expected rebuilt map to keep the factory, got %v", got)
	}
}
