// Package cache provides the entity cache: an in-memory store of query
// results keyed by (operation, normalized arguments), with reference-counted
// subscriptions and a tag index used for targeted invalidation.
//
// A query is declared with a Key, a FetchFunc and an optional MergeFunc. The
// first Subscribe for a key triggers the fetch; later subscribers share the
// in-flight or resolved entry. Each successful fetch reports the Tags the
// result depends on, and Invalidate refetches every subscribed entry whose
// tags match. Entries with no subscribers are marked stale and refetched on
// the next Subscribe, then evicted once the grace window elapses.
//
// Fetch results for one entry commit in the order the fetches were issued,
// so a later page append can never land before an earlier page replace.
// Results for entries that were evicted or reset in the meantime are dropped.
//
// Entry data is shared between subscribers and must be treated as immutable:
// Patch and PatchTagged take a PatchFunc that returns a modified copy.
package cache
