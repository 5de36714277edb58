// Package entity defines the domain records the sync core caches, the tag
// vocabulary they are invalidated by, the cache keys of the standard queries
// and the patch helpers shared by optimistic mutations and realtime events.
//
// Patch helpers work on whichever shape an entry holds: a post patch reaches
// both a post detail entry and every feed page Collection containing that
// post.
package entity
