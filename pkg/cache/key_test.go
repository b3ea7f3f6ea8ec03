package cache

import (
	"net/url"
	"testing"
)

func TestCreateKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		query  map[string]any
		want   string
	}{
		{
			name:   "no query",
			method: "GET",
			path:   "cdn/stories/home",
			want:   "GET:cdn/stories/home:{}",
		},
		{
			name:   "leading slash trimmed",
			method: "get",
			path:   "/cdn/stories",
			query:  map[string]any{"version": "published"},
			want:   `GET:cdn/stories:{"version":"published"}`,
		},
		{
			name:   "sorted keys",
			method: "GET",
			path:   "cdn/stories",
			query:  map[string]any{"page": 2, "per_page": "25", "cv": 1700000000},
			want:   `GET:cdn/stories:{"cv":1700000000,"page":2,"per_page":"25"}`,
		},
		{
			name:   "nested filter query",
			method: "GET",
			path:   "cdn/stories",
			query: map[string]any{
				"filter_query": map[string]any{
					"slug":      map[string]any{"in": "a,b"},
					"component": map[string]any{"in": "page"},
				},
			},
			want: `GET:cdn/stories:{"filter_query":{"component":{"in":"page"},"slug":{"in":"a,b"}}}`,
		},
		{
			name:   "list values keep order",
			method: "GET",
			path:   "cdn/stories",
			query:  map[string]any{"with_tag": []any{"b", "a"}},
			want:   `GET:cdn/stories:{"with_tag":["b","a"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateKey(tt.method, tt.path, tt.query)
			if got != tt.want {
				t.Errorf("CreateKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCreateKey_Determinism ensures key order does not affect the key
func TestCreateKey_Determinism(t *testing.T) {
	a := CreateKey("GET", "cdn/stories", map[string]any{"a": 1, "b": 2})
	b := CreateKey("GET", "cdn/stories", map[string]any{"b": 2, "a": 1})
	if a != b {
		t.Errorf("keys differ for reordered query: %v vs %v", a, b)
	}

	nestedA := CreateKey("GET", "cdn/stories", map[string]any{
		"filter_query": map[string]any{"x": map[string]any{"in": "1"}, "y": map[string]any{"is": "2"}},
	})
	nestedB := CreateKey("GET", "cdn/stories", map[string]any{
		"filter_query": map[string]any{"y": map[string]any{"is": "2"}, "x": map[string]any{"in": "1"}},
	})
	if nestedA != nestedB {
		t.Errorf("keys differ for reordered nested query: %v vs %v", nestedA, nestedB)
	}

	for i := 0; i < 10; i++ {
		if got := CreateKey("GET", "cdn/stories", map[string]any{"b": 2, "a": 1}); got != a {
			t.Errorf("iteration %d: key = %v, want %v (not deterministic)", i, got, a)
		}
	}
}

func TestCreateKey_Distinct(t *testing.T) {
	query := map[string]any{"a": 1}
	base := CreateKey("GET", "cdn/stories", query)

	if CreateKey("POST", "cdn/stories", query) == base {
		t.Error("different method produced the same key")
	}
	if CreateKey("GET", "cdn/links", query) == base {
		t.Error("different path produced the same key")
	}
	if CreateKey("GET", "cdn/stories", map[string]any{"a": 2}) == base {
		t.Error("different query produced the same key")
	}
}

func TestCreateKey_URLValues(t *testing.T) {
	got := CreateKey("GET", "cdn/stories", map[string]any{
		"params": url.Values{"z": {"1"}, "a": {"2", "3"}},
	})
	want := `GET:cdn/stories:{"params":{"a":["2","3"],"z":"1"}}`
	if got != want {
		t.Errorf("CreateKey() = %v, want %v", got, want)
	}
}
