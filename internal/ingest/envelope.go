package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseEnvelope extracts one page of records from a raw response body. The
// government portals serve at least four wrapper shapes; all of them
// normalize to the same Envelope. srcURL only labels errors.
func ParseEnvelope(raw []byte, srcURL string) (Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return Envelope{}, fmt.Errorf("decode response from %s: %w", srcURL, err)
	}

	switch v := root.(type) {
	case []any:
		items := coerceItems(v)
		return Envelope{Items: items, TotalCount: len(items)}, nil
	case map[string]any:
		return parseObject(v, raw, srcURL)
	default:
		return Envelope{}, &UnrecognizedEnvelopeError{URL: srcURL}
	}
}

func parseObject(obj map[string]any, raw []byte, srcURL string) (Envelope, error) {
	if code, ok := serviceFailure(obj); ok {
		return Envelope{}, &ServiceFailureError{URL: srcURL, Code: code, Snippet: snippet(raw, 300)}
	}

	if items, ok := pseudoArray(obj); ok {
		return Envelope{Items: items, TotalCount: len(items)}, nil
	}

	// {header, body: {items, totalCount, pageNo, numOfRows}}
	if body, ok := obj["body"].(map[string]any); ok {
		return parseBody(body), nil
	}

	// {response: {header, body: {items: {item}, totalCount, ...}}}
	if resp, ok := obj["response"].(map[string]any); ok {
		if body, ok := resp["body"].(map[string]any); ok {
			return parseBody(body), nil
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return Envelope{}, &UnrecognizedEnvelopeError{URL: srcURL, Keys: keys}
}

func parseBody(body map[string]any) Envelope {
	env := Envelope{
		Items:      unwrapItems(body["items"]),
		TotalCount: asInt(body["totalCount"]),
		PageNo:     asInt(body["pageNo"]),
		PageSize:   asInt(body["numOfRows"]),
	}
	if env.TotalCount == 0 {
		env.TotalCount = len(env.Items)
	}
	return env
}

// serviceFailure recognizes the portal's error sentinel documents, which
// arrive with HTTP 200.
func serviceFailure(obj map[string]any) (string, bool) {
	hdr, ok := obj["cmmMsgHeader"].(map[string]any)
	if !ok {
		svc, isSvc := obj["OpenAPI_ServiceResponse"].(map[string]any)
		if !isSvc {
			return "", false
		}
		hdr, ok = svc["cmmMsgHeader"].(map[string]any)
		if !ok {
			return "OpenAPI_ServiceResponse", true
		}
	}
	for _, key := range []string{"returnAuthMsg", "errMsg", "returnReasonCode"} {
		if s, ok := hdr[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "cmmMsgHeader", true
}

// pseudoArray detects objects whose keys are exactly the decimal indexes
// 0..n-1, an encoding some endpoints use instead of a JSON array. Sparse or
// duplicate indexes (a "0" next to a "00") disqualify the object so no record
// is silently dropped.
func pseudoArray(obj map[string]any) ([]Record, bool) {
	if len(obj) == 0 {
		return nil, false
	}
	values := make([]any, len(obj))
	seen := make([]bool, len(obj))
	for k, v := range obj {
		if k != "0" && strings.HasPrefix(k, "0") {
			return nil, false
		}
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= len(obj) || seen[idx] {
			return nil, false
		}
		seen[idx] = true
		values[idx] = v
	}
	return coerceItems(values), true
}

// unwrapItems handles the items slot's variants: an array of records, a bare
// single record, or an {item: record | [records]} wrapper. An empty string
// (how the portals spell "no rows") yields nil.
func unwrapItems(items any) []Record {
	switch v := items.(type) {
	case nil:
		return nil
	case string:
		return nil
	case []any:
		return coerceItems(v)
	case map[string]any:
		if inner, ok := v["item"]; ok {
			switch iv := inner.(type) {
			case []any:
				return coerceItems(iv)
			case map[string]any:
				return []Record{Record(iv)}
			case nil:
				return nil
			default:
				return []Record{{"value": iv}}
			}
		}
		return []Record{Record(v)}
	default:
		return []Record{{"value": v}}
	}
}

func coerceItems(values []any) []Record {
	records := make([]Record, 0, len(values))
	for _, v := range values {
		if m, ok := v.(map[string]any); ok {
			records = append(records, Record(m))
			continue
		}
		records = append(records, Record{"value": v})
	}
	return records
}

func asInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

func snippet(raw []byte, limit int) string {
	s := string(raw)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
