package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/mocks"
	"github.com/ersonp/saga-core/internal/domain/statediff"
)

func testInput(entityID string, order int, state entities.StateMap) SnapshotInput {
	return SnapshotInput{
		EntityType:   entities.EntityCharacter,
		EntityID:     entityID,
		ChapterID:    fmt.Sprintf("ch-%d", order),
		ChapterOrder: order,
		State:        state,
	}
}

func TestWriteSnapshotFirstIsKeyframe(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	snap, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 1, entities.StateMap{"name": "Aria"}))
	require.NoError(t, err)

	assert.True(t, snap.IsKeyframe)
	assert.Equal(t, entities.ChangeInitial, snap.ChangeType)
	assert.Equal(t, entities.StateMap{"name": "Aria"}, snap.StateData)
}

func TestWriteSnapshotKeyframeCadence(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	for order := 1; order <= 11; order++ {
		snap, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", order, entities.StateMap{
			"counter": float64(order),
		}))
		require.NoError(t, err)

		wantKeyframe := (order-1)%KeyframeInterval == 0
		assert.Equal(t, wantKeyframe, snap.IsKeyframe, "order %d", order)
	}
}

func TestWriteSnapshotDeltaStoresOnlyChanges(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 1, entities.StateMap{
		"name":     "Aria",
		"location": "Harbor",
	}))
	require.NoError(t, err)

	snap, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 2, entities.StateMap{
		"location": "Citadel",
	}))
	require.NoError(t, err)

	assert.False(t, snap.IsKeyframe)
	assert.Equal(t, entities.ChangeUpdate, snap.ChangeType)
	// The unchanged name is not repeated in the delta
	assert.Equal(t, entities.StateMap{"location": "Citadel"}, snap.StateData)
}

func TestWriteSnapshotRecordsCarryReasonAndSource(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	input := testInput("char-1", 1, entities.StateMap{
		"name":     "Aria",
		"location": "Harbor",
	})
	input.ChangeReason = "fled the siege"
	input.SourceText = "Aria slipped out through the harbor gate before dawn."

	snap, err := svc.WriteSnapshot(ctx, "proj-1", input)
	require.NoError(t, err)

	_, records, err := svc.GetSnapshot(ctx, snap.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, record := range records {
		assert.Equal(t, "fled the siege", record.ChangeReason, record.FieldPath)
		assert.Equal(t, "Aria slipped out through the harbor gate before dawn.", record.SourceText, record.FieldPath)
	}
}

func TestWriteSnapshotOutOfOrder(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 5, entities.StateMap{"name": "Aria"}))
	require.NoError(t, err)

	var orderErr *entities.InvalidOrderError

	_, err = svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 5, entities.StateMap{"name": "Aria II"}))
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, 5, orderErr.ChapterOrder)
	assert.Equal(t, 5, orderErr.MaxOrder)

	_, err = svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 3, entities.StateMap{"name": "Aria III"}))
	assert.ErrorAs(t, err, &orderErr)
}

func TestWriteSnapshotValidation(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	tests := []struct {
		name      string
		projectID string
		input     SnapshotInput
	}{
		{
			name:      "empty project",
			projectID: "",
			input:     testInput("char-1", 1, entities.StateMap{"a": "b"}),
		},
		{
			name:      "unknown entity type",
			projectID: "proj-1",
			input: SnapshotInput{
				EntityType:   "spaceship",
				EntityID:     "char-1",
				ChapterID:    "ch-1",
				ChapterOrder: 1,
			},
		},
		{
			name:      "empty entity id",
			projectID: "proj-1",
			input:     testInput("", 1, nil),
		},
		{
			name:      "empty chapter id",
			projectID: "proj-1",
			input: SnapshotInput{
				EntityType: entities.EntityCharacter,
				EntityID:   "char-1",
			},
		},
		{
			name:      "zero chapter order",
			projectID: "proj-1",
			input:     testInput("char-1", 0, nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.WriteSnapshot(ctx, tt.projectID, tt.input)
			var validationErr *entities.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestPartialStateWithDeletion(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()
	ref := entities.TrackedEntityRef{EntityType: entities.EntityCharacter, EntityID: "char-1"}

	_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 1, entities.StateMap{
		"name":   "Aria",
		"weapon": "sword",
	}))
	require.NoError(t, err)

	// Partial update: change nothing but drop the weapon
	_, err = svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 2, entities.StateMap{
		"weapon": nil,
	}))
	require.NoError(t, err)

	state, err := svc.LatestState(ctx, "proj-1", ref)
	require.NoError(t, err)
	assert.Equal(t, entities.StateMap{"name": "Aria"}, state)
}

func TestReconstructStateAt(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()
	ref := entities.TrackedEntityRef{EntityType: entities.EntityCharacter, EntityID: "char-1"}

	states := map[int]entities.StateMap{
		1: {"location": "Harbor"},
		3: {"location": "Road"},
		7: {"location": "Citadel", "wounded": true},
	}
	for _, order := range []int{1, 3, 7} {
		_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", order, states[order]))
		require.NoError(t, err)
	}

	// Exact orders
	state, err := svc.ReconstructStateAt(ctx, "proj-1", ref, 3)
	require.NoError(t, err)
	assert.Equal(t, "Road", state["location"])

	// Between snapshots: nearest at or before applies
	state, err = svc.ReconstructStateAt(ctx, "proj-1", ref, 5)
	require.NoError(t, err)
	assert.Equal(t, "Road", state["location"])
	assert.NotContains(t, state, "wounded")

	state, err = svc.ReconstructStateAt(ctx, "proj-1", ref, 100)
	require.NoError(t, err)
	assert.Equal(t, true, state["wounded"])

	// Before the first snapshot there is nothing to reconstruct
	var notFound *entities.NotFoundError
	_, err = svc.ReconstructStateAt(ctx, "proj-1", ref, 0)
	assert.ErrorAs(t, err, &notFound)
}

func TestReconstructMissingTimeline(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())

	var notFound *entities.NotFoundError
	_, err := svc.ReconstructStateAt(context.Background(), "proj-1", entities.TrackedEntityRef{
		EntityType: entities.EntityCharacter,
		EntityID:   "ghost",
	}, 10)
	assert.ErrorAs(t, err, &notFound)
}

func TestDiffStates(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()
	ref := entities.TrackedEntityRef{EntityType: entities.EntityCharacter, EntityID: "char-1"}

	_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 1, entities.StateMap{
		"location": "Harbor",
		"weapon":   "sword",
	}))
	require.NoError(t, err)
	_, err = svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 4, entities.StateMap{
		"location": "Citadel",
		"weapon":   nil,
		"wounded":  true,
	}))
	require.NoError(t, err)

	changes, err := svc.DiffStates(ctx, "proj-1", ref, 1, 4)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	// Sorted by field path
	assert.Equal(t, "location", changes[0].FieldPath)
	assert.Equal(t, "Harbor", changes[0].OldValue)
	assert.Equal(t, "Citadel", changes[0].NewValue)

	assert.Equal(t, "weapon", changes[1].FieldPath)
	assert.Equal(t, "sword", changes[1].OldValue)
	assert.Nil(t, changes[1].NewValue)

	assert.Equal(t, "wounded", changes[2].FieldPath)
	assert.Nil(t, changes[2].OldValue)
	assert.Equal(t, true, changes[2].NewValue)
}

func TestGetSnapshotWithChangeRecords(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()

	_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 1, entities.StateMap{"name": "Aria"}))
	require.NoError(t, err)

	second, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 2, entities.StateMap{
		"name": "Aria",
		"rank": "captain",
	}))
	require.NoError(t, err)

	snap, records, err := svc.GetSnapshot(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, snap.ID)
	require.Len(t, records, 1)
	assert.Equal(t, "rank", records[0].FieldPath)
	assert.Nil(t, records[0].OldValue)
	assert.Equal(t, "captain", records[0].NewValue)

	var notFound *entities.NotFoundError
	_, _, err = svc.GetSnapshot(ctx, "missing")
	assert.ErrorAs(t, err, &notFound)
}

func TestDeleteTimeline(t *testing.T) {
	svc := NewTimelineService(mocks.NewRelationalDB())
	ctx := context.Background()
	ref := entities.TrackedEntityRef{EntityType: entities.EntityCharacter, EntityID: "char-1"}

	_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", 1, entities.StateMap{"name": "Aria"}))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTimeline(ctx, "proj-1", ref))

	var notFound *entities.NotFoundError
	_, err = svc.LatestState(ctx, "proj-1", ref)
	assert.ErrorAs(t, err, &notFound)

	err = svc.DeleteTimeline(ctx, "proj-1", ref)
	assert.ErrorAs(t, err, &notFound)
}

// TestReconstructionFidelity checks that for any write sequence, the state
// reconstructed at every written order matches the state tracked by applying
// the same updates directly, across keyframe and delta snapshots alike.
func TestReconstructionFidelity(t *testing.T) {
	keys := []string{"alpha", "beta", "gamma", "delta"}

	rapid.Check(t, func(t *rapid.T) {
		svc := NewTimelineService(mocks.NewRelationalDB())
		ctx := context.Background()
		ref := entities.TrackedEntityRef{EntityType: entities.EntityCharacter, EntityID: "char-1"}

		writeCount := rapid.IntRange(1, 12).Draw(t, "writes")
		expected := entities.StateMap{}
		expectedAt := make(map[int]entities.StateMap)

		order := 0
		for w := 0; w < writeCount; w++ {
			order += rapid.IntRange(1, 3).Draw(t, "gap")

			update := entities.StateMap{}
			for _, key := range keys {
				switch rapid.IntRange(0, 2).Draw(t, "op") {
				case 0: // leave unchanged
				case 1: // set
					update[key] = rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "value")
				case 2: // delete
					update[key] = nil
				}
			}

			_, err := svc.WriteSnapshot(ctx, "proj-1", testInput("char-1", order, update))
			require.NoError(t, err)

			expected = statediff.Apply(expected, update)
			expectedAt[order] = statediff.Clone(expected)
		}

		for at, want := range expectedAt {
			got, err := svc.ReconstructStateAt(ctx, "proj-1", ref, at)
			require.NoError(t, err)
			assert.True(t, statediff.Equal(want, got), "order %d: want %v, got %v", at, want, got)
		}
	})
}
