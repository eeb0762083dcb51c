package checker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/saga-core/internal/domain/entities"
	"github.com/ersonp/saga-core/internal/domain/mocks"
	"github.com/ersonp/saga-core/internal/domain/ports"
	"github.com/ersonp/saga-core/internal/domain/services"
)

func seedSnapshots(t *testing.T, db *mocks.RelationalDB, states ...entities.StateMap) {
	t.Helper()
	timelines := services.NewTimelineService(db)
	for i, state := range states {
		_, err := timelines.WriteSnapshot(context.Background(), "proj-1", services.SnapshotInput{
			EntityType:   entities.EntityCharacter,
			EntityID:     "char-1",
			ChapterID:    "ch-1",
			ChapterOrder: i + 1,
			State:        state,
		})
		require.NoError(t, err)
	}
}

func TestTriggerCheckFilesWarnings(t *testing.T) {
	db := mocks.NewRelationalDB()
	llm := &mocks.LLMClient{Issues: []ports.ContinuityIssue{{
		FieldPath:   "eye_color",
		Description: "eye color changed from green to blue without explanation",
		Expected:    "green",
		Actual:      "blue",
		Severity:    entities.SeverityWarning,
	}}}

	seedSnapshots(t, db,
		entities.StateMap{"eye_color": "green"},
		entities.StateMap{"eye_color": "blue"},
	)

	c := NewChecker(db, llm)
	c.SetDebounce(0)

	err := c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria")
	require.NoError(t, err)
	require.Len(t, llm.Calls, 1)

	warnings, err := db.FindOpenWarnings(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, entities.WarningCharacterInconsistency, warnings[0].WarningType)
	assert.Equal(t, "eye_color", warnings[0].FieldPath)
	assert.Equal(t, "green", warnings[0].ExpectedValue)
}

func TestTriggerCheckSkipsSingleSnapshot(t *testing.T) {
	db := mocks.NewRelationalDB()
	llm := &mocks.LLMClient{}

	seedSnapshots(t, db, entities.StateMap{"eye_color": "green"})

	c := NewChecker(db, llm)
	c.SetDebounce(0)

	err := c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria")
	require.NoError(t, err)
	assert.Empty(t, llm.Calls, "one snapshot leaves nothing to compare")
}

func TestTriggerCheckSkipsMissingTimeline(t *testing.T) {
	db := mocks.NewRelationalDB()
	llm := &mocks.LLMClient{}

	c := NewChecker(db, llm)
	c.SetDebounce(0)

	err := c.TriggerCheck(context.Background(), "proj-1", "ghost", entities.EntityCharacter, "Ghost")
	require.NoError(t, err)
	assert.Empty(t, llm.Calls)
}

func TestTriggerCheckDebounces(t *testing.T) {
	db := mocks.NewRelationalDB()
	llm := &mocks.LLMClient{}

	seedSnapshots(t, db,
		entities.StateMap{"eye_color": "green"},
		entities.StateMap{"eye_color": "blue"},
	)

	c := NewChecker(db, llm)

	require.NoError(t, c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria"))
	require.NoError(t, c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria"))

	assert.Len(t, llm.Calls, 1, "second check inside the debounce window is skipped")
}

func TestTriggerCheckDeduplicatesOpenWarnings(t *testing.T) {
	db := mocks.NewRelationalDB()
	llm := &mocks.LLMClient{Issues: []ports.ContinuityIssue{{
		FieldPath:   "eye_color",
		Description: "changed without explanation",
		Severity:    entities.SeverityWarning,
	}}}

	seedSnapshots(t, db,
		entities.StateMap{"eye_color": "green"},
		entities.StateMap{"eye_color": "blue"},
	)

	c := NewChecker(db, llm)
	c.SetDebounce(0)

	require.NoError(t, c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria"))
	require.NoError(t, c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria"))

	warnings, err := db.FindOpenWarnings(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Len(t, warnings, 1, "an open warning of the same type suppresses duplicates")
}

func TestTriggerCheckPropagatesJudgmentError(t *testing.T) {
	db := mocks.NewRelationalDB()
	llm := &mocks.LLMClient{Err: errors.New("model overloaded")}

	seedSnapshots(t, db,
		entities.StateMap{"eye_color": "green"},
		entities.StateMap{"eye_color": "blue"},
	)

	c := NewChecker(db, llm)
	c.SetDebounce(0)

	err := c.TriggerCheck(context.Background(), "proj-1", "char-1", entities.EntityCharacter, "Aria")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "judging continuity")
}

func TestWarningTypeForEntityTypes(t *testing.T) {
	assert.Equal(t, entities.WarningCharacterInconsistency, warningTypeFor(entities.EntityCharacter))
	assert.Equal(t, entities.WarningWikiInconsistency, warningTypeFor(entities.EntityWikiEntry))
	assert.Equal(t, entities.WarningTimelineConflict, warningTypeFor(entities.EntityRelationship))
}
