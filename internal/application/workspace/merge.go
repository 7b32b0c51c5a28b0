package workspace

import "github.com/ophion/companion/internal/domain/entities"

// Rule keeps one field of the local copy when Condition holds for it.
// Fields without a rule take the server value.
type Rule[T entities.Record] struct {
	Field     string
	Condition func(local T) bool
	Keep      func(merged *T, local T)
}

// MergePolicy reconciles a local record with its server snapshot
type MergePolicy[T entities.Record] struct {
	rules []Rule[T]
}

// NewMergePolicy builds a policy from rules applied in order
func NewMergePolicy[T entities.Record](rules ...Rule[T]) MergePolicy[T] {
	return MergePolicy[T]{rules: rules}
}

// With returns a copy of the policy with an extra rule appended
func (p MergePolicy[T]) With(rule Rule[T]) MergePolicy[T] {
	rules := make([]Rule[T], 0, len(p.rules)+1)
	rules = append(rules, p.rules...)
	return MergePolicy[T]{rules: append(rules, rule)}
}

// ClientFields lists the fields that may keep their local value
func (p MergePolicy[T]) ClientFields() []string {
	out := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		out = append(out, r.Field)
	}
	return out
}

// Merge starts from remote and lets each matching rule restore a local field
func (p MergePolicy[T]) Merge(local, remote T) T {
	merged := remote
	for _, r := range p.rules {
		if r.Condition == nil || r.Condition(local) {
			r.Keep(&merged, local)
		}
	}
	return merged
}

func timerRunning(t entities.Task) bool { return t.IsTimerRunning }

// DefaultTaskPolicy keeps an actively ticking timer local
func DefaultTaskPolicy() MergePolicy[entities.Task] {
	return NewMergePolicy(
		Rule[entities.Task]{
			Field:     "timeSpent",
			Condition: timerRunning,
			Keep:      func(m *entities.Task, l entities.Task) { m.TimeSpent = l.TimeSpent },
		},
		Rule[entities.Task]{
			Field:     "isTimerRunning",
			Condition: timerRunning,
			Keep:      func(m *entities.Task, l entities.Task) { m.IsTimerRunning = l.IsTimerRunning },
		},
	)
}

// DefaultNotePolicy lets the server win every field
func DefaultNotePolicy() MergePolicy[entities.Note] {
	return NewMergePolicy[entities.Note]()
}
