// Package attrs reads slog-style key-value attribute lists.
package attrs

// ExtractString returns the value following key in an alternating
// [key1, value1, key2, value2, ...] list. A missing key or a non-string
// value yields "".
func ExtractString(attrs []any, key string) string {
	for i := 0; i+1 < len(attrs); i += 2 {
		k, ok := attrs[i].(string)
		if !ok || k != key {
			continue
		}
		if v, ok := attrs[i+1].(string); ok {
			return v
		}
	}
	return ""
}
