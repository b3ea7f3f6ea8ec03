package relations

// Story is a decoded story object.
type Story = map[string]any

// RelationMap indexes stories by uuid.
type RelationMap map[string]Story

// Add indexes every story in items that carries a uuid.
func (m RelationMap) Add(items []any) {
	for _, item := range items {
		story, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if uuid, ok := story["uuid"].(string); ok && uuid != "" {
			m[uuid] = story
		}
	}
}

// ComponentNode is a content node that names its component.
type ComponentNode struct {
	UID       string
	Component string
	Fields    map[string]any
}

// AsComponent reports whether v is a component node: an object carrying both
// a component name and a _uid.
func AsComponent(v any) (ComponentNode, bool) {
	fields, ok := v.(map[string]any)
	if !ok {
		return ComponentNode{}, false
	}
	component, ok := fields["component"].(string)
	if !ok || component == "" {
		return ComponentNode{}, false
	}
	uid, ok := fields["_uid"].(string)
	if !ok || uid == "" {
		return ComponentNode{}, false
	}
	return ComponentNode{UID: uid, Component: component, Fields: fields}, true
}

// inliner carries the state of one top-level inlining call.
type inliner struct {
	paths    map[string]struct{}
	rels     RelationMap
	resolved map[string]Story
}

func newInliner(paths []string, rels RelationMap) *inliner {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return &inliner{
		paths:    set,
		rels:     rels,
		resolved: make(map[string]Story),
	}
}

// InlineStory returns a copy of story with requested relations inlined.
// story itself is not modified. Every referenced story is inlined at most
// once; later references, including cyclic ones, share the same instance.
func InlineStory(story Story, paths []string, rels RelationMap) Story {
	if story == nil {
		return nil
	}
	return newInliner(paths, rels).entity(story)
}

// InlineStories applies InlineStory to every story with one shared
// resolved set.
func InlineStories(stories []any, paths []string, rels RelationMap) []any {
	in := newInliner(paths, rels)
	out := make([]any, len(stories))
	for i, item := range stories {
		if story, ok := item.(map[string]any); ok {
			out[i] = in.entity(story)
			continue
		}
		out[i] = item
	}
	return out
}

// entity clones story, memoizes the clone and walks its content.
func (in *inliner) entity(story Story) Story {
	uuid, _ := story["uuid"].(string)
	if uuid != "" {
		if done, ok := in.resolved[uuid]; ok {
			return done
		}
	}

	clone := deepCopy(story).(map[string]any)
	if uuid != "" {
		in.resolved[uuid] = clone
	}

	if content, ok := clone["content"]; ok {
		in.walk(content)
	}
	return clone
}

// walk visits v in place. Component fields named by a requested path have
// their uuid references substituted; every other value is walked further.
func (in *inliner) walk(v any) {
	switch node := v.(type) {
	case map[string]any:
		component, isComponent := AsComponent(node)
		for field, value := range node {
			if isComponent {
				if _, ok := in.paths[component.Component+"."+field]; ok {
					node[field] = in.substitute(value)
					continue
				}
			}
			in.walk(value)
		}
	case []any:
		for _, item := range node {
			in.walk(item)
		}
	}
}

// substitute replaces uuids found in the relation map with inlined stories.
func (in *inliner) substitute(value any) any {
	switch v := value.(type) {
	case string:
		if story, ok := in.rels[v]; ok {
			return in.entity(story)
		}
		return v
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			if s, ok := item.(string); ok {
				if story, ok := in.rels[s]; ok {
					out[i] = in.entity(story)
					continue
				}
			}
			out[i] = item
		}
		return out
	default:
		return value
	}
}

// deepCopy copies decoded JSON values.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return val
	}
}
