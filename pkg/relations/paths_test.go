package relations

import (
	"reflect"
	"testing"
)

func TestParsePaths(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{name: "single", value: "article.author", want: []string{"article.author"}},
		{name: "multiple", value: "article.author,page.featured", want: []string{"article.author", "page.featured"}},
		{name: "whitespace trimmed", value: " article.author , page.featured ", want: []string{"article.author", "page.featured"}},
		{name: "no dot dropped", value: "article,page.featured", want: []string{"page.featured"}},
		{name: "two dots dropped", value: "a.b.c,page.featured", want: []string{"page.featured"}},
		{name: "empty sides dropped", value: ".author,article.,page.featured", want: []string{"page.featured"}},
		{name: "empty string", value: "", want: []string{}},
		{name: "list value", value: []any{"article.author", "bad", 42}, want: []string{"article.author"}},
		{name: "string slice", value: []string{"article.author,page.featured"}, want: []string{"article.author", "page.featured"}},
		{name: "unsupported type", value: 42, want: nil},
		{name: "absent", value: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePaths(tt.value)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePaths(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
