package cache

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CreateKey generates a deterministic cache key for a request.
// Format: method:path:query
//
// Query maps are serialized with their keys sorted at every nesting level, so
// two queries that differ only in key order produce the same key.
//
// Example:
//
//	GET:cdn/stories/home:{"language":"de","version":"published"}
func CreateKey(method, path string, query map[string]any) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(':')
	b.WriteString(strings.TrimPrefix(path, "/"))
	b.WriteByte(':')
	writeSorted(&b, query)
	return b.String()
}

// writeSorted writes v as JSON with map keys in sorted order.
func writeSorted(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, k)
			b.WriteByte(':')
			writeSorted(b, val[k])
		}
		b.WriteByte('}')
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		writeSorted(b, m)
	case url.Values:
		m := make(map[string]any, len(val))
		for k, vs := range val {
			if len(vs) == 1 {
				m[k] = vs[0]
				continue
			}
			items := make([]any, len(vs))
			for i, s := range vs {
				items[i] = s
			}
			m[k] = items
		}
		writeSorted(b, m)
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeSorted(b, item)
		}
		b.WriteByte(']')
	case []string:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, item)
		}
		b.WriteByte(']')
	case string:
		writeString(b, val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			fmt.Fprintf(b, "%q", fmt.Sprint(val))
			return
		}
		b.Write(data)
	}
}

func writeString(b *strings.Builder, s string) {
	data, _ := json.Marshal(s)
	b.Write(data)
}
