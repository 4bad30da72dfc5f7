package display

import (
	"encoding/json"
)

// MarshalJSON pretty-prints for terminal consumption. Scripted callers
// that want compact output can re-marshal; the CLI optimizes for eyes.
func MarshalJSON(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
