package workspace

import "github.com/ophion/companion/internal/domain/entities"

// pendingCreate collects edits made to a record whose Add has not returned yet
type pendingCreate struct {
	collection entities.Collection
	patch      entities.Patch
	deleted    bool
}

// mutationLog is keyed by temporary id
type mutationLog struct {
	pending map[string]*pendingCreate
}

func newMutationLog() *mutationLog {
	return &mutationLog{pending: make(map[string]*pendingCreate)}
}

func (l *mutationLog) begin(tempID string, collection entities.Collection) {
	l.pending[tempID] = &pendingCreate{collection: collection, patch: entities.Patch{}}
}

func (l *mutationLog) isPending(id string) bool {
	_, ok := l.pending[id]
	return ok
}

// record folds patch into the entry. It reports false when id is not pending.
func (l *mutationLog) record(id string, patch entities.Patch) bool {
	p, ok := l.pending[id]
	if !ok {
		return false
	}
	p.patch = p.patch.Merge(patch)
	return true
}

func (l *mutationLog) markDeleted(id string) bool {
	p, ok := l.pending[id]
	if !ok {
		return false
	}
	p.deleted = true
	return true
}

// resolve removes and returns the entry for id
func (l *mutationLog) resolve(id string) (*pendingCreate, bool) {
	p, ok := l.pending[id]
	if ok {
		delete(l.pending, id)
	}
	return p, ok
}

func (l *mutationLog) discard(id string) {
	delete(l.pending, id)
}
