package namecodec

import (
	"reflect"
	"sort"
	"testing"
)

func TestFlatten(t *testing.T) {
	tree := map[string]any{
		"sim_generator": map[string]any{
			"temperature": 42.5,
			"pressure":    101.3,
		},
		"global_value": 7.0,
	}

	pairs := Flatten(tree, "__")
	got := map[string]any{}
	for _, p := range pairs {
		got[p.Name] = p.Value
	}

	want := map[string]any{
		"sim_generator__temperature": 42.5,
		"sim_generator__pressure":    101.3,
		"global_value":               7.0,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flatten() = %v, want %v", got, want)
	}
}

func TestUnflatten(t *testing.T) {
	t.Run("single segment", func(t *testing.T) {
		got := Unflatten("global_value", 9.0, "__")
		want := map[string]any{"global_value": 9.0}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Unflatten() = %v, want %v", got, want)
		}
	})

	t.Run("two segments", func(t *testing.T) {
		got := Unflatten("sim__temperature", 42.5, "__")
		want := map[string]any{"sim": map[string]any{"temperature": 42.5}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Unflatten() = %v, want %v", got, want)
		}
	})

	t.Run("depth 3 is fully right-nested, not pairwise", func(t *testing.T) {
		got := Unflatten("a__b__c", 1.0, "__")
		want := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1.0}}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("Unflatten() = %v, want %v (full right-nesting, not the pairwise quirk)", got, want)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	// P1: flatten/unflatten round-trips for trees of depth <= 2.
	tree := map[string]any{
		"sim_generator": map[string]any{
			"temperature": 42.5,
			"pressure":    101.3,
		},
		"global_value": 7.0,
	}

	pairs := Flatten(tree, "__")
	rebuilt := map[string]any{}
	for _, p := range pairs {
		rebuilt = Merge(rebuilt, Unflatten(p.Name, p.Value, "__"))
	}

	if !reflect.DeepEqual(rebuilt, tree) {
		t.Errorf("round trip = %v, want %v", rebuilt, tree)
	}
}

func TestMerge(t *testing.T) {
	a := Unflatten("sim__temperature", 42.5, "__")
	b := Unflatten("sim__pressure", 101.3, "__")
	merged := Merge(a, b)

	want := map[string]any{
		"sim": map[string]any{
			"temperature": 42.5,
			"pressure":    101.3,
		},
	}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("Merge() = %v, want %v", merged, want)
	}
}

func TestRetrieve(t *testing.T) {
	tree := map[string]any{
		"sim_generator": map[string]any{
			"temperature": 42.5,
		},
		"global_value": 7.0,
	}

	t.Run("single segment", func(t *testing.T) {
		v, ok := Retrieve(tree, "global_value", "__")
		if !ok || v != 7.0 {
			t.Errorf("Retrieve() = (%v, %v), want (7.0, true)", v, ok)
		}
	})

	t.Run("nested", func(t *testing.T) {
		v, ok := Retrieve(tree, "sim_generator__temperature", "__")
		if !ok || v != 42.5 {
			t.Errorf("Retrieve() = (%v, %v), want (42.5, true)", v, ok)
		}
	})

	t.Run("dead end returns false", func(t *testing.T) {
		_, ok := Retrieve(tree, "sim_generator__missing", "__")
		if ok {
			t.Error("expected Retrieve() to fail on missing path")
		}
	})

	t.Run("unknown top level", func(t *testing.T) {
		_, ok := Retrieve(tree, "nope", "__")
		if ok {
			t.Error("expected Retrieve() to fail on unknown tag")
		}
	})
}

func namesOf(pairs []Pair) []string {
	names := make([]string, len(pairs))
	for i, p := range pairs {
		names[i] = p.Name
	}
	sort.Strings(names)
	return names
}
