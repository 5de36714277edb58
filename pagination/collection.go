package pagination

import "github.com/jonwraymond/tripsync/cache"

// FirstPage is the cursor of the first page.
const FirstPage = ""

// Page is one server response.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor"`
	HasMore    bool   `json:"hasMore"`
}

// Collection is the accumulated state held by the cache entry.
type Collection[T any] struct {
	Items   []T
	Cursor  string // next cursor to request
	HasMore bool

	// LastCursor is the cursor of the most recently merged page.
	LastCursor string
	// Pages counts merged pages since the last first-page replace.
	Pages int
}

// fetched carries a page together with the cursor it was requested with.
type fetched[T any] struct {
	cursor string
	page   Page[T]
}

// merge builds the next Collection from the committed one and an incoming page.
func merge[T any](prev Collection[T], f fetched[T], id func(T) string) Collection[T] {
	var items []T
	pages := 1
	if f.cursor == FirstPage {
		items = appendUnique(nil, f.page.Items, id)
	} else {
		items = appendUnique(prev.Items, f.page.Items, id)
		pages = prev.Pages + 1
	}
	return Collection[T]{
		Items:      items,
		Cursor:     f.page.NextCursor,
		HasMore:    f.page.HasMore,
		LastCursor: f.cursor,
		Pages:      pages,
	}
}

// appendUnique returns a new slice with prev followed by the items of next
// whose id is not yet present.
func appendUnique[T any](prev, next []T, id func(T) string) []T {
	out := make([]T, 0, len(prev)+len(next))
	seen := make(map[string]struct{}, len(prev)+len(next))
	for _, item := range prev {
		seen[id(item)] = struct{}{}
		out = append(out, item)
	}
	for _, item := range next {
		k := id(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ItemTags returns a tag function declaring one {typ, id} tag per item, the
// {typ, *} wildcard, and any extra tags.
func ItemTags[T any](typ string, id func(T) string, extra ...cache.Tag) func([]T) []cache.Tag {
	return func(items []T) []cache.Tag {
		tags := make([]cache.Tag, 0, len(items)+len(extra)+1)
		for _, item := range items {
			tags = append(tags, cache.T(typ, id(item)))
		}
		tags = append(tags, cache.Any(typ))
		return append(tags, extra...)
	}
}
