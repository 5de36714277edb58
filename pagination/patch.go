package pagination

import "github.com/jonwraymond/tripsync/cache"

// UpdateItems returns a PatchFunc that applies fn to every item of a
// Collection[T]. Entries holding other data are left alone.
func UpdateItems[T any](fn func(T) (T, bool)) cache.PatchFunc {
	return func(data any) (any, bool) {
		coll, ok := data.(Collection[T])
		if !ok {
			return data, false
		}
		items := make([]T, len(coll.Items))
		changed := false
		for i, item := range coll.Items {
			next, ok := fn(item)
			if ok {
				changed = true
				item = next
			}
			items[i] = item
		}
		if !changed {
			return data, false
		}
		coll.Items = items
		return coll, true
	}
}

// PrependItem returns a PatchFunc that inserts item at the head of a
// Collection[T] unless an item with the same id is already present.
func PrependItem[T any](item T, id func(T) string) cache.PatchFunc {
	return func(data any) (any, bool) {
		coll, ok := data.(Collection[T])
		if !ok {
			return data, false
		}
		want := id(item)
		for _, existing := range coll.Items {
			if id(existing) == want {
				return data, false
			}
		}
		items := make([]T, 0, len(coll.Items)+1)
		items = append(items, item)
		coll.Items = append(items, coll.Items...)
		return coll, true
	}
}

// AppendItem returns a PatchFunc that adds item at the tail of a
// Collection[T] unless an item with the same id is already present.
func AppendItem[T any](item T, id func(T) string) cache.PatchFunc {
	return func(data any) (any, bool) {
		coll, ok := data.(Collection[T])
		if !ok {
			return data, false
		}
		next := appendUnique(coll.Items, []T{item}, id)
		if len(next) == len(coll.Items) {
			return data, false
		}
		coll.Items = next
		return coll, true
	}
}

// RemoveItem returns a PatchFunc that drops the item with the given id.
func RemoveItem[T any](target string, id func(T) string) cache.PatchFunc {
	return func(data any) (any, bool) {
		coll, ok := data.(Collection[T])
		if !ok {
			return data, false
		}
		items := make([]T, 0, len(coll.Items))
		for _, item := range coll.Items {
			if id(item) != target {
				items = append(items, item)
			}
		}
		if len(items) == len(coll.Items) {
			return data, false
		}
		coll.Items = items
		return coll, true
	}
}
