package cache

import "sort"

// Wildcard is the Tag ID meaning "any entity of this type".
const Wildcard = "*"

// Tag declares that an entry's correctness depends on an entity.
type Tag struct {
	Type string
	ID   string
}

// T returns the Tag for one entity.
func T(typ, id string) Tag { return Tag{Type: typ, ID: id} }

// Any returns the wildcard Tag for typ.
func Any(typ string) Tag { return Tag{Type: typ, ID: Wildcard} }

// IsWildcard reports whether t addresses every entity of its type.
func (t Tag) IsWildcard() bool { return t.ID == Wildcard }

func (t Tag) String() string { return t.Type + ":" + t.ID }

// Matches reports whether invalidating t reaches an entry that provides p.
//
// A specific tag {T, id} reaches providers of {T, id} and {T, *}.
// A wildcard tag {T, *} reaches every provider of any {T, ...} tag.
func (t Tag) Matches(p Tag) bool {
	if t.Type != p.Type {
		return false
	}
	return t.IsWildcard() || p.IsWildcard() || t.ID == p.ID
}

// dedupeTags returns tags without duplicates, sorted for stable output.
func dedupeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// TagStrings renders tags for logs and span attributes.
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}
