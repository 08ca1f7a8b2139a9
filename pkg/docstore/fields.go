package docstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TimeLayout is fixed width so that lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// Normalize round-trips fields through JSON so that locally built values
// have exactly the types a remote read would produce.
func Normalize(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return nil, nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return out, nil
}

// Merge returns a copy of dst with patch deep-merged into it. Nested maps
// merge key by key, everything else is replaced.
func Merge(dst, patch map[string]any) map[string]any {
	out := Clone(dst)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		pm, isMap := v.(map[string]any)
		cur, curIsMap := out[k].(map[string]any)
		if isMap && curIsMap {
			out[k] = Merge(cur, pm)
			continue
		}
		if isMap {
			out[k] = Clone(pm)
			continue
		}
		out[k] = v
	}
	return out
}

// Clone deep-copies nested maps; slices and scalars are shared.
func Clone(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if m, ok := v.(map[string]any); ok {
			out[k] = Clone(m)
			continue
		}
		out[k] = v
	}
	return out
}

// Text renders a field value the way Postgres' ->> operator does.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
