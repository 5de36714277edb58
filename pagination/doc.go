// Package pagination accumulates a cursor-paginated collection into a single
// cache entry.
//
// Every page of a collection shares one cache.Key (built with
// cache.NewKeyIgnoring so the cursor does not take part). The first page
// replaces the accumulated items; later pages append, skipping ids that are
// already present. The next cursor and HasMore always come from the most
// recent response.
//
// Duplicate requests for a cursor that is in flight join that request.
// A request for the cursor that was fetched last is a no-op; use Refresh to
// reload from the top.
package pagination
