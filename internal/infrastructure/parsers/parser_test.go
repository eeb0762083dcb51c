package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   Parser
	}{
		{name: "json", format: "json", want: &JSONParser{}},
		{name: "json uppercase", format: "JSON", want: &JSONParser{}},
		{name: "csv", format: "csv", want: &CSVParser{}},
		{name: "unknown", format: "xml", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForFormat(tt.format))
		})
	}
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("seed.json"))
	assert.IsType(t, &CSVParser{}, ForFile("seed.CSV"))
	assert.Nil(t, ForFile("seed.yaml"))
}

func TestJSONParser(t *testing.T) {
	input := `[
		{
			"entity_type": "character",
			"entity_id": "char-1",
			"entity_name": "Aria",
			"chapter_id": "ch-1",
			"chapter_order": 1,
			"state": {"location": "Harbor", "alive": true},
			"summary": "Aria introduced"
		},
		{
			"entity_type": "wiki_entry",
			"entity_id": "wiki-1",
			"chapter_id": "ch-2",
			"chapter_order": 2,
			"state": {"title": "The Harbor"}
		}
	]`

	records, err := (&JSONParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "character", records[0].EntityType)
	assert.Equal(t, "char-1", records[0].EntityID)
	assert.Equal(t, "Aria", records[0].EntityName)
	assert.Equal(t, 1, records[0].ChapterOrder)
	assert.Equal(t, "Harbor", records[0].State["location"])
	assert.Equal(t, true, records[0].State["alive"])
	assert.Equal(t, 1, records[0].LineNum)

	assert.Equal(t, "wiki_entry", records[1].EntityType)
	assert.Equal(t, 2, records[1].LineNum)
}

func TestJSONParserInvalid(t *testing.T) {
	_, err := (&JSONParser{}).Parse(strings.NewReader(`{not json`))
	assert.Error(t, err)
}

func TestCSVParser(t *testing.T) {
	input := strings.Join([]string{
		"entity_type,entity_id,entity_name,chapter_id,chapter_order,summary,state_location,state_mood",
		"character,char-1,Aria,ch-1,1,Aria arrives,Harbor,hopeful",
		"character,char-2,Bren,ch-1,1,Bren arrives,Harbor,wary",
	}, "\n")

	records, err := (&CSVParser{}).Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "character", records[0].EntityType)
	assert.Equal(t, "char-1", records[0].EntityID)
	assert.Equal(t, "Aria", records[0].EntityName)
	assert.Equal(t, "ch-1", records[0].ChapterID)
	assert.Equal(t, 1, records[0].ChapterOrder)
	assert.Equal(t, "Aria arrives", records[0].Summary)
	assert.Equal(t, map[string]any{"location": "Harbor", "mood": "hopeful"}, records[0].State)
	assert.Equal(t, 2, records[0].LineNum)
	assert.Equal(t, 3, records[1].LineNum)
}

func TestCSVParserMissingColumn(t *testing.T) {
	input := "entity_type,entity_id,chapter_id\ncharacter,char-1,ch-1"

	_, err := (&CSVParser{}).Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column: chapter_order")
}

func TestCSVParserInvalidOrder(t *testing.T) {
	input := strings.Join([]string{
		"entity_type,entity_id,chapter_id,chapter_order",
		"character,char-1,ch-1,first",
	}, "\n")

	_, err := (&CSVParser{}).Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
