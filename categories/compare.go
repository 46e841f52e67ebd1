package categories

import (
	"encoding/json"
	"reflect"
)

// DecisionsEqual reports structural equality between a declared expectation
// and an observed decision value: booleans by value, objects key-for-key
// with no tolerance for extra or missing keys, arrays element-by-element in
// order. Both sides are normalized through a JSON round trip first so that
// YAML-decoded expectations (int-typed numbers, map[string]any) compare
// cleanly against JSON-decoded decisions.
func DecisionsEqual(expected, actual any) bool {
	ne, err := normalize(expected)
	if err != nil {
		return false
	}
	na, err := normalize(actual)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(ne, na)
}

func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
