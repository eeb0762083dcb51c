package statediff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ersonp/saga-core/internal/domain/entities"
)

func TestDiff(t *testing.T) {
	t.Run("changed and added fields carry new values", func(t *testing.T) {
		old := entities.StateMap{"name": "Ava", "age": float64(20)}
		new := entities.StateMap{"name": "Ava", "age": float64(21), "title": "Knight"}

		delta := Diff(old, new)

		assert.Equal(t, entities.StateMap{"age": float64(21), "title": "Knight"}, delta)
	})

	t.Run("removed fields are marked nil", func(t *testing.T) {
		old := entities.StateMap{"name": "Ava", "title": "Knight"}
		new := entities.StateMap{"name": "Ava"}

		delta := Diff(old, new)

		require.Contains(t, delta, "title")
		assert.Nil(t, delta["title"])
	})

	t.Run("identical states produce empty delta", func(t *testing.T) {
		state := entities.StateMap{"name": "Ava", "tags": []any{"hero"}}

		delta := Diff(state, state)

		assert.Empty(t, delta)
	})

	t.Run("nested values compare structurally", func(t *testing.T) {
		old := entities.StateMap{"stats": map[string]any{"hp": float64(10)}}
		new := entities.StateMap{"stats": map[string]any{"hp": float64(10)}}

		assert.Empty(t, Diff(old, new))
	})
}

func TestApply(t *testing.T) {
	t.Run("sets and removes fields", func(t *testing.T) {
		base := entities.StateMap{"name": "Ava", "age": float64(20), "title": "Knight"}
		delta := entities.StateMap{"age": float64(21), "title": nil}

		result := Apply(base, delta)

		assert.Equal(t, entities.StateMap{"name": "Ava", "age": float64(21)}, result)
	})

	t.Run("does not mutate the base", func(t *testing.T) {
		base := entities.StateMap{"age": float64(20)}
		Apply(base, entities.StateMap{"age": float64(99)})

		assert.Equal(t, float64(20), base["age"])
	})

	t.Run("removing an absent field is a no-op", func(t *testing.T) {
		base := entities.StateMap{"name": "Ava"}
		result := Apply(base, entities.StateMap{"title": nil})

		assert.Equal(t, entities.StateMap{"name": "Ava"}, result)
	})

	t.Run("empty delta leaves state unchanged", func(t *testing.T) {
		base := entities.StateMap{"name": "Ava", "age": float64(20)}
		result := Apply(base, entities.StateMap{})

		assert.True(t, Equal(base, result))
	})
}

func TestChanges(t *testing.T) {
	old := entities.StateMap{"name": "Ava", "age": float64(20), "title": "Knight"}
	new := entities.StateMap{"name": "Ava", "age": float64(21), "home": "Varn"}

	changes := Changes(old, new)

	require.Len(t, changes, 3)
	// Sorted by field path: age, home, title.
	assert.Equal(t, "age", changes[0].FieldPath)
	assert.Equal(t, float64(20), changes[0].OldValue)
	assert.Equal(t, float64(21), changes[0].NewValue)
	assert.Equal(t, "home", changes[1].FieldPath)
	assert.Nil(t, changes[1].OldValue)
	assert.Equal(t, "title", changes[2].FieldPath)
	assert.Nil(t, changes[2].NewValue)
}

func TestClone(t *testing.T) {
	t.Run("nil state clones to empty map", func(t *testing.T) {
		assert.NotNil(t, Clone(nil))
	})

	t.Run("nested maps are independent", func(t *testing.T) {
		state := entities.StateMap{"stats": map[string]any{"hp": float64(10)}}
		clone := Clone(state)

		clone["stats"].(map[string]any)["hp"] = float64(0)

		assert.Equal(t, float64(10), state["stats"].(map[string]any)["hp"])
	})
}

// stateGen draws arbitrary JSON-compatible state maps (no nil values:
// the delta encoding reserves nil for deletion).
func stateGen() *rapid.Generator[entities.StateMap] {
	scalar := rapid.OneOf(
		rapid.Map(rapid.String(), func(s string) any { return s }),
		rapid.Map(rapid.Float64Range(-1e6, 1e6), func(f float64) any { return f }),
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
	)
	value := rapid.OneOf(
		scalar,
		rapid.Map(rapid.SliceOfN(scalar, 0, 4), func(s []any) any { return s }),
		rapid.Map(rapid.MapOfN(rapid.StringMatching(`[a-z]{1,6}`), scalar, 0, 4), func(m map[string]any) any {
			return map[string]any(m)
		}),
	)
	return rapid.Map(
		rapid.MapOfN(rapid.StringMatching(`[a-z_]{1,8}`), value, 0, 8),
		func(m map[string]any) entities.StateMap { return entities.StateMap(m) },
	)
}

func TestDeltaRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := stateGen().Draw(t, "a")
		b := stateGen().Draw(t, "b")

		result := Apply(a, Diff(a, b))

		if !Equal(result, b) {
			t.Fatalf("apply(diff(a,b), a) = %v, want %v", result, b)
		}
	})
}

func TestDeltaIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := stateGen().Draw(t, "a")
		b := stateGen().Draw(t, "b")
		delta := Diff(a, b)

		once := Apply(a, delta)
		twice := Apply(once, delta)

		if !Equal(once, twice) {
			t.Fatalf("applying delta twice diverged: %v vs %v", once, twice)
		}
	})
}

func TestEmptyDeltaIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := stateGen().Draw(t, "a")

		result := Apply(a, entities.StateMap{})

		if !Equal(result, a) {
			t.Fatalf("empty delta changed state: %v vs %v", result, a)
		}
	})
}
