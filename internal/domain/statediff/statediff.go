// Package statediff implements the keyframe/delta algebra for entity state
// maps: computing field-wise deltas, applying them on replay, and deep
// copying states so reconstruction never aliases stored data.
package statediff

import (
	"reflect"
	"sort"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

// Diff computes the field-wise delta from old to new. Keys present in the
// result hold the new value; keys removed from newState are marked nil so
// they can be deleted on replay. Unchanged keys are omitted. The delta
// encoding reserves nil for deletion, so a nil field value is treated the
// same as an absent key.
func Diff(oldState, newState entities.StateMap) entities.StateMap {
	delta := entities.StateMap{}
	for k, nv := range newState {
		ov, ok := oldState[k]
		if !ok || !valuesEqual(ov, nv) {
			delta[k] = Copy(nv)
		}
	}
	for k := range oldState {
		if _, ok := newState[k]; !ok {
			delta[k] = nil
		}
	}
	return delta
}

// Apply replays a delta onto a base state and returns the result. A nil
// value in the delta removes the key; any other value sets it. The base is
// never mutated. Applying the same delta twice yields the same result as
// applying it once.
func Apply(base, delta entities.StateMap) entities.StateMap {
	result := Clone(base)
	for k, v := range delta {
		if v == nil {
			delete(result, k)
			continue
		}
		result[k] = Copy(v)
	}
	return result
}

// Changes lists every field that differs between old and new, sorted by
// field path for deterministic output.
func Changes(oldState, newState entities.StateMap) []FieldChange {
	var changes []FieldChange
	for k, nv := range newState {
		ov, ok := oldState[k]
		if !ok {
			changes = append(changes, FieldChange{FieldPath: k, NewValue: Copy(nv)})
			continue
		}
		if !valuesEqual(ov, nv) {
			changes = append(changes, FieldChange{FieldPath: k, OldValue: Copy(ov), NewValue: Copy(nv)})
		}
	}
	for k, ov := range oldState {
		if _, ok := newState[k]; !ok {
			changes = append(changes, FieldChange{FieldPath: k, OldValue: Copy(ov)})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].FieldPath < changes[j].FieldPath })
	return changes
}

// FieldChange is one entry in a field-wise comparison of two states.
// A nil NewValue means the field was removed; a nil OldValue means added.
type FieldChange struct {
	FieldPath string
	OldValue  any
	NewValue  any
}

// Clone deep-copies a state map.
func Clone(state entities.StateMap) entities.StateMap {
	if state == nil {
		return entities.StateMap{}
	}
	result := make(entities.StateMap, len(state))
	for k, v := range state {
		result[k] = Copy(v)
	}
	return result
}

// Copy deep-copies a single JSON-compatible value.
func Copy(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, e := range tv {
			m[k] = Copy(e)
		}
		return m
	case entities.StateMap:
		m := make(map[string]any, len(tv))
		for k, e := range tv {
			m[k] = Copy(e)
		}
		return m
	case []any:
		s := make([]any, len(tv))
		for i, e := range tv {
			s[i] = Copy(e)
		}
		return s
	default:
		// Scalars (string, float64, bool, nil) are immutable.
		return v
	}
}

// valuesEqual compares two JSON-compatible values structurally.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

// normalize converts StateMap nesting to plain map[string]any so equal
// states compare equal regardless of how they were built.
func normalize(v any) any {
	switch tv := v.(type) {
	case entities.StateMap:
		return normalize(map[string]any(tv))
	case map[string]any:
		m := make(map[string]any, len(tv))
		for k, e := range tv {
			m[k] = normalize(e)
		}
		return m
	case []any:
		s := make([]any, len(tv))
		for i, e := range tv {
			s[i] = normalize(e)
		}
		return s
	default:
		return v
	}
}

// Equal reports whether two states hold the same fields and values.
func Equal(a, b entities.StateMap) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}
