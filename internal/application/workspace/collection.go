package workspace

import (
	"time"

	"github.com/ophion/companion/internal/domain/entities"
)

// storedRecord is a record whose identity the store assigns
type storedRecord[T any] interface {
	entities.Record
	WithIdentity(id string, createdAt *time.Time) T
	Created() *time.Time
}

// collection is the ordered in-memory copy of one remote collection.
// Callers hold the workspace lock.
type collection[T storedRecord[T]] struct {
	name        entities.Collection
	items       []T
	policy      MergePolicy[T]
	newestFirst bool
}

func newCollection[T storedRecord[T]](name entities.Collection, policy MergePolicy[T], newestFirst bool) *collection[T] {
	return &collection[T]{name: name, policy: policy, newestFirst: newestFirst}
}

func (c *collection[T]) indexOf(id string) int {
	for i, rec := range c.items {
		if rec.RecordID() == id {
			return i
		}
	}
	return -1
}

func (c *collection[T]) get(id string) (T, bool) {
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) list() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection[T]) insert(rec T) {
	if c.newestFirst {
		c.items = append([]T{rec}, c.items...)
		return
	}
	c.items = append(c.items, rec)
}

func (c *collection[T]) remove(id string) bool {
	i := c.indexOf(id)
	if i < 0 {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	return true
}

// reconcile replaces the collection with a server snapshot. Records known
// locally are merged through the policy, and optimistic records whose
// creation is still in flight are kept.
func (c *collection[T]) reconcile(remote []T, pending func(id string) bool) {
	local := make(map[string]T, len(c.items))
	var inflight []T
	for _, rec := range c.items {
		id := rec.RecordID()
		if entities.IsTempID(id) {
			if pending(id) {
				inflight = append(inflight, rec)
			}
			continue
		}
		local[id] = rec
	}

	merged := make([]T, 0, len(remote)+len(inflight))
	if c.newestFirst {
		merged = append(merged, inflight...)
	}
	for _, rec := range remote {
		if l, ok := local[rec.RecordID()]; ok {
			rec = c.policy.Merge(l, rec)
		}
		merged = append(merged, rec)
	}
	if !c.newestFirst {
		merged = append(merged, inflight...)
	}
	c.items = merged
}

// settle renames the optimistic record tempID to its permanent id. When a
// snapshot already delivered the permanent record, the local copy takes its
// place and the duplicate goes away.
func (c *collection[T]) settle(tempID, id string) (T, bool) {
	ti := c.indexOf(tempID)
	if ti < 0 {
		var zero T
		return zero, false
	}
	local := c.items[ti]

	pi := c.indexOf(id)
	if pi < 0 {
		settled := local.WithIdentity(id, local.Created())
		c.items[ti] = settled
		return settled, true
	}

	settled := local.WithIdentity(id, c.items[pi].Created())
	c.items[pi] = settled
	c.items = append(c.items[:ti], c.items[ti+1:]...)
	return settled, true
}
