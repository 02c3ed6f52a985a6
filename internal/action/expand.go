package action

import (
	"fmt"
	"strings"
)

// Expand substitutes placeholders in s: {text} first, then
// {config.<section>.<key>} from settings, then {<key>} from extras.
// Unknown placeholders are left untouched.
func Expand(s string, actx Context) string {
	out := strings.ReplaceAll(s, "{text}", actx.Text)
	for section, keys := range actx.Settings {
		for key, val := range keys {
			out = strings.ReplaceAll(out, "{config."+section+"."+key+"}", val)
		}
	}
	for key, val := range actx.Extras {
		out = strings.ReplaceAll(out, "{"+key+"}", fmt.Sprint(val))
	}
	return out
}

// ExpandValue applies Expand to every string reachable from v,
// descending into maps and slices. Non-string leaves pass through.
func ExpandValue(v any, actx Context) any {
	switch t := v.(type) {
	case string:
		return Expand(t, actx)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = ExpandValue(val, actx)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = ExpandValue(val, actx)
		}
		return out
	default:
		return v
	}
}
