// Package mutation runs write operations against the backend and keeps the
// entity cache consistent with them.
//
// A plain mutation runs its request and, on success, invalidates the tags it
// declares so dependent entries refetch. An optimistic mutation additionally
// patches every affected entry before the request is sent (entity fan-out by
// tag or by key) and records which entries changed. On failure those entries
// are reverted; on success they are left as patched, the remaining tagged
// entries are invalidated, and the server's reply is reconciled into the
// patched entries once no other optimistic mutation on the same target is
// still in flight.
//
// Reverts are relative: a Revert is applied to the entry as it is at undo
// time, so a still-pending later mutation on the same entity keeps its own
// effect.
package mutation
