package utils

import (
	"encoding/json"
)

// MustMarshalJSON marshals v into a json byte array.
// It panics if marshaling fails.
func MustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic("failed to marshal JSON: " + err.Error())
	}
	return data
}

// UnmarshalJSON unmarshals json data into v.
func UnmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// MergeJSONMaps returns the union of base and overlay. Keys present in both
// take the overlay value; neither input map is mutated. Used for monotonic
// intake-answer accumulation.
func MergeJSONMaps(base, overlay map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}
