package eval

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mlld-lang/mlld-core/interp/variable"
)

// anyToText renders a resolved value in its textual form, matching
// variable.Variable.AsText's rules (spec.md §4.2): strings unchanged,
// objects/arrays as JSON, everything else stringified.
func anyToText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case *variable.Variable:
		return t.AsText()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return fmt.Sprintf("%v", t), nil
	}
}

// toOutputString is anyToText without the error return, used where a
// conversion failure should fall back to a best-effort rendering rather
// than abort (e.g. feeding a pipeline's base input).
func toOutputString(v any) string {
	s, err := anyToText(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return s
}
