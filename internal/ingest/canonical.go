package ingest

import (
	"regexp"
	"strings"
)

// Source APIs name fields in SCREAMING_SNAKE (DUTY_NAME, WGS84_LON). Keys in
// that shape are rewritten to lowerCamel; everything else passes through.
var sourceKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)*$`)

// CanonicalKey converts FOO_BAR style keys to fooBar. Keys not in that style
// are returned unchanged.
func CanonicalKey(key string) string {
	if !sourceKeyPattern.MatchString(key) {
		return key
	}
	parts := strings.Split(key, "_")
	var b strings.Builder
	for i, part := range parts {
		lower := strings.ToLower(part)
		if i == 0 {
			b.WriteString(lower)
			continue
		}
		b.WriteString(strings.ToUpper(lower[:1]))
		b.WriteString(lower[1:])
	}
	return b.String()
}

// CanonicalizeRecord rewrites every key of a record, recursing into nested
// objects and arrays. Values are never touched.
func CanonicalizeRecord(record Record) Record {
	out := make(Record, len(record))
	for k, v := range record {
		out[CanonicalKey(k)] = canonicalizeValue(v)
	}
	return out
}

func canonicalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[CanonicalKey(k)] = canonicalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = canonicalizeValue(inner)
		}
		return out
	default:
		return v
	}
}
