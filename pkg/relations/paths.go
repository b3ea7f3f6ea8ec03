// Package relations resolves cross-references between stories.
//
// A relation path names a field of a component ("article.author"). For every
// component node whose component.field is requested, uuid references in that
// field are replaced with the referenced story. References are resolved from
// stories embedded in the response and, when missing, fetched in chunks.
package relations

import (
	"strings"
)

// ParsePaths extracts relation paths from a resolve_relations query value.
// Entries that are not exactly component.field are dropped.
func ParsePaths(value any) []string {
	var raw []string
	switch v := value.(type) {
	case string:
		raw = strings.Split(v, ",")
	case []string:
		for _, s := range v {
			raw = append(raw, strings.Split(s, ",")...)
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, strings.Split(s, ",")...)
			}
		}
	default:
		return nil
	}

	paths := make([]string, 0, len(raw))
	for _, entry := range raw {
		entry = strings.TrimSpace(entry)
		if isRelationPath(entry) {
			paths = append(paths, entry)
		}
	}
	return paths
}

func isRelationPath(s string) bool {
	component, field, ok := strings.Cut(s, ".")
	return ok && component != "" && field != "" && !strings.Contains(field, ".")
}
