package transport

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// EncodeQuery serializes a query map into URL query syntax. Nested maps use
// bracket notation (filter_query[component][in]=page) and lists use empty
// brackets (with_tag[]=a&with_tag[]=b). Keys are emitted in sorted order.
func EncodeQuery(query map[string]any) string {
	values := url.Values{}
	for key, v := range query {
		encodeValue(values, key, v)
	}
	return values.Encode()
}

func encodeValue(values url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
		return
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			encodeValue(values, key+"["+k+"]", val[k])
		}
	case map[string]string:
		for k, s := range val {
			values.Add(key+"["+k+"]", s)
		}
	case []any:
		for _, item := range val {
			encodeValue(values, key+"[]", item)
		}
	case []string:
		for _, item := range val {
			values.Add(key+"[]", item)
		}
	case string:
		values.Add(key, val)
	case bool:
		values.Add(key, strconv.FormatBool(val))
	case int:
		values.Add(key, strconv.Itoa(val))
	case int64:
		values.Add(key, strconv.FormatInt(val, 10))
	case float64:
		values.Add(key, strconv.FormatFloat(val, 'f', -1, 64))
	default:
		values.Add(key, fmt.Sprint(val))
	}
}

// DecodeQuery parses URL query values into a query map, reversing the
// bracket notation produced by EncodeQuery. Repeated plain keys become lists.
func DecodeQuery(values url.Values) map[string]any {
	query := make(map[string]any, len(values))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, raw := range keys {
		vs := values[raw]
		path := splitBrackets(raw)
		if len(path) == 0 {
			continue
		}

		isList := path[len(path)-1] == ""
		if isList {
			path = path[:len(path)-1]
		}

		var v any
		switch {
		case isList || len(vs) > 1:
			items := make([]any, len(vs))
			for i, s := range vs {
				items[i] = s
			}
			v = items
		default:
			v = vs[0]
		}

		assign(query, path, v)
	}
	return query
}

// splitBrackets turns "a[b][c]" into ["a", "b", "c"] and "a[]" into ["a", ""].
func splitBrackets(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}

	parts := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return parts
}

func assign(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = v
}

// CloneQuery returns a shallow copy of query.
func CloneQuery(query map[string]any) map[string]any {
	out := make(map[string]any, len(query)+1)
	for k, v := range query {
		out[k] = v
	}
	return out
}
