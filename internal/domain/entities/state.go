package entities

// StateMap is the unit of diffing: a dynamic bag of field path to value.
// Different entity types carry different fields, so no schema is imposed.
// Values are JSON-compatible (string, float64, bool, nil, []any,
// map[string]any) since states round-trip through JSON storage.
type StateMap map[string]any
