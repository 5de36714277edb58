package mutation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/tripsync/cache"
)

// Patch is a cache change aimed at every entry Tag reaches plus the listed
// Keys. Revert must undo Apply relative to the entry's data at undo time;
// it is only run on entries Apply changed.
type Patch struct {
	Tag    cache.Tag
	Keys   []cache.Key
	Apply  cache.PatchFunc
	Revert cache.PatchFunc
}

func (p Patch) target() string {
	if p.Tag.Type != "" {
		return p.Tag.String()
	}
	parts := make([]string, len(p.Keys))
	for i, k := range p.Keys {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

func (p Patch) hasTarget() bool {
	return p.Tag.Type != "" || len(p.Keys) > 0
}

// Mutation describes one write.
type Mutation[R any] struct {
	// Name identifies the mutation in errors, logs and traces. Required.
	Name string
	// Resource is the entity type written, for telemetry.
	Resource string

	// Do performs the request. Required.
	Do func(ctx context.Context) (R, error)

	// Invalidates lists the tags invalidated on success.
	Invalidates []cache.Tag
	// InvalidatesFrom derives more tags from the reply, such as the id of a
	// created entity.
	InvalidatesFrom func(R) []cache.Tag

	// Optimistic patches are applied before Do runs and reverted if it fails.
	Optimistic []Patch
	// Confirm returns the patch that writes the server's reply into the
	// optimistically patched entries. It is skipped for a target while
	// another optimistic mutation with the same Name is in flight on it, so
	// it should only write the fields this mutation owns.
	Confirm func(R) cache.PatchFunc

	// Update returns patches applied right after success, for local effects
	// that need the reply, such as appending a sent message.
	Update func(R) []Patch

	// After returns patches applied Settle after success, leaving a
	// transient state visible in between.
	After  func(R) []Patch
	Settle time.Duration
}

func (m Mutation[R]) validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrMissingName
	}
	if m.Do == nil {
		return ErrNilDo
	}
	for i, p := range m.Optimistic {
		if !p.hasTarget() || p.Apply == nil || p.Revert == nil {
			return fmt.Errorf("%w: %s patch %d", ErrInvalidPatch, m.Name, i)
		}
	}
	return nil
}

func (m Mutation[R]) tags(result R) []cache.Tag {
	tags := append([]cache.Tag(nil), m.Invalidates...)
	if m.InvalidatesFrom != nil {
		tags = append(tags, m.InvalidatesFrom(result)...)
	}
	return tags
}
