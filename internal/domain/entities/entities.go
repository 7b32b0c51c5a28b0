package entities

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Common errors
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrNoteNotFound        = errors.New("note not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrThemeNotFound       = errors.New("theme not found")
	ErrEmptyTitle          = errors.New("task title is required")
	ErrEmptyContent        = errors.New("note content is required")
	ErrInvalidDisplayName  = errors.New("display name is required")
	ErrInvalidTransition   = errors.New("invalid board interaction")
	ErrNoPendingConversion = errors.New("no conversion awaiting confirmation")
	ErrUnknownCollection   = errors.New("unknown collection")
	ErrUnknownField        = errors.New("field cannot be written")
	ErrRequiredField       = errors.New("field cannot be cleared")
)

// TempIDPrefix marks identifiers assigned locally before the store returns a permanent one.
const TempIDPrefix = "temp-"

// IsTempID reports whether id was assigned locally.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Collection names a remote store collection.
type Collection string

const (
	CollectionTasks Collection = "tasks"
	CollectionNotes Collection = "notes"
)

type Category string

const (
	CategoryWork     Category = "Work"
	CategoryPersonal Category = "Personal"
	CategoryHealth   Category = "Health"
	CategoryGrowth   Category = "Growth"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryHealth, CategoryGrowth}

func (c Category) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryHealth, CategoryGrowth:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type NoteSkin string

const (
	SkinClassic     NoteSkin = "CLASSIC"
	SkinHolographic NoteSkin = "HOLOGRAPHIC"
	SkinCyberpunk   NoteSkin = "CYBERPUNK"
	SkinMinimal     NoteSkin = "MINIMAL"
	SkinGlass       NoteSkin = "GLASS"
)

// Skins is the fixed cycling order of note skins.
var Skins = []NoteSkin{SkinClassic, SkinHolographic, SkinCyberpunk, SkinMinimal, SkinGlass}

// Task represents a to-do item owned by a single user
type Task struct {
	ID             string     `json:"id" db:"id" bson:"-"`
	UserID         string     `json:"userId,omitempty" db:"user_id" bson:"userId"`
	Title          string     `json:"title" db:"title" bson:"title"`
	Completed      bool       `json:"completed" db:"completed" bson:"completed"`
	Category       Category   `json:"category" db:"category" bson:"category"`
	Priority       Priority   `json:"priority" db:"priority" bson:"priority"`
	DueDate        string     `json:"dueDate" db:"due_date" bson:"dueDate"`
	ProjectID      *string    `json:"projectId,omitempty" db:"project_id" bson:"projectId,omitempty"`
	AssignedTo     *string    `json:"assignedTo,omitempty" db:"assigned_to" bson:"assignedTo,omitempty"`
	TimeSpent      int        `json:"timeSpent" db:"time_spent" bson:"timeSpent"`
	IsTimerRunning bool       `json:"isTimerRunning" db:"is_timer_running" bson:"isTimerRunning"`
	StartTime      *string    `json:"startTime,omitempty" db:"start_time" bson:"startTime,omitempty"`
	Duration       *int       `json:"duration,omitempty" db:"duration" bson:"duration,omitempty"`
	Day            *string    `json:"day,omitempty" db:"day" bson:"day,omitempty"`
	CreatedAt      *time.Time `json:"createdAt,omitempty" db:"created_at" bson:"createdAt,omitempty"`
}

// Note represents a free-floating sticky note on the board
type Note struct {
	ID        string     `json:"id" db:"id" bson:"-"`
	UserID    string     `json:"userId,omitempty" db:"user_id" bson:"userId"`
	Content   string     `json:"content" db:"content" bson:"content"`
	Color     string     `json:"color" db:"color" bson:"color"`
	Skin      NoteSkin   `json:"skin" db:"skin" bson:"skin"`
	IsPinned  bool       `json:"isPinned" db:"is_pinned" bson:"isPinned"`
	Priority  Priority   `json:"priority,omitempty" db:"priority" bson:"priority,omitempty"`
	Date      string     `json:"date" db:"date" bson:"date"`
	X         float64    `json:"x" db:"x" bson:"x"`
	Y         float64    `json:"y" db:"y" bson:"y"`
	Rotation  float64    `json:"rotation" db:"rotation" bson:"rotation"`
	Width     float64    `json:"width" db:"width" bson:"width"`
	Height    float64    `json:"height" db:"height" bson:"height"`
	Opacity   float64    `json:"opacity" db:"opacity" bson:"opacity"`
	CreatedAt *time.Time `json:"createdAt,omitempty" db:"created_at" bson:"createdAt,omitempty"`
}

// Record is a document stored in one of the remote collections.
type Record interface {
	RecordID() string
	Owner() string
	Collection() Collection
}

func (t Task) RecordID() string { return t.ID }

func (t Task) Owner() string { return t.UserID }

func (Task) Collection() Collection { return CollectionTasks }

func (n Note) RecordID() string { return n.ID }

func (n Note) Owner() string { return n.UserID }

func (Note) Collection() Collection { return CollectionNotes }

// WithIdentity returns a copy carrying the store-assigned id and timestamp.
func (t Task) WithIdentity(id string, createdAt *time.Time) Task {
	t.ID, t.CreatedAt = id, createdAt
	return t
}

func (t Task) Created() *time.Time { return t.CreatedAt }

// WithIdentity returns a copy carrying the store-assigned id and timestamp.
func (n Note) WithIdentity(id string, createdAt *time.Time) Note {
	n.ID, n.CreatedAt = id, createdAt
	return n
}

func (n Note) Created() *time.Time { return n.CreatedAt }

// Patch is a partial record keyed by JSON field name.
type Patch map[string]any

// Writable fields per collection. The value tells whether the field may be
// cleared with null. id, userId and createdAt belong to the store.
var writableFields = map[Collection]map[string]bool{
	CollectionTasks: {
		"title":          false,
		"completed":      false,
		"category":       false,
		"priority":       false,
		"dueDate":        false,
		"timeSpent":      false,
		"isTimerRunning": false,
		"projectId":      true,
		"assignedTo":     true,
		"startTime":      true,
		"duration":       true,
		"day":            true,
	},
	CollectionNotes: {
		"content":  false,
		"color":    false,
		"skin":     false,
		"isPinned": false,
		"priority": false,
		"date":     false,
		"x":        false,
		"y":        false,
		"rotation": false,
		"width":    false,
		"height":   false,
		"opacity":  false,
	},
}

// WritableFields lists the patchable fields of collection.
func WritableFields(collection Collection) ([]string, error) {
	fields, ok := writableFields[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ValidatePatch rejects keys the collection does not own and nulls on
// required fields. Nothing in the patch is applied when it fails.
func ValidatePatch(collection Collection, patch Patch) error {
	fields, ok := writableFields[collection]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	for k, v := range patch {
		nullable, ok := fields[k]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, collection, k)
		}
		if v == nil && !nullable {
			return fmt.Errorf("%w: %s.%s", ErrRequiredField, collection, k)
		}
	}
	return nil
}

// Merge returns a new patch with the fields of other layered over p.
func (p Patch) Merge(other Patch) Patch {
	merged := make(Patch, len(p)+len(other))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Apply overlays patch onto a copy of rec by round-tripping through its JSON form.
func Apply[T Record](rec T, patch Patch) (T, error) {
	var out T
	if len(patch) == 0 {
		return rec, nil
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("encode record: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return out, fmt.Errorf("decode record: %w", err)
	}
	for k, v := range patch {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	raw, err = json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("encode patched record: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode patched record: %w", err)
	}
	return out, nil
}

// ProjectType separates solo projects from team projects
type ProjectType string

const (
	ProjectTypePersonal ProjectType = "Personal"
	ProjectTypeGroup    ProjectType = "Group"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "Active"
	ProjectStatusCompleted ProjectStatus = "Completed"
	ProjectStatusOnHold    ProjectStatus = "On Hold"
)

type MemberRole string

const (
	MemberRoleOwner       MemberRole = "Owner"
	MemberRoleManager     MemberRole = "Manager"
	MemberRoleContributor MemberRole = "Contributor"
)

// Member is a participant of a project
type Member struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Role   MemberRole `json:"role"`
	Avatar string     `json:"avatar"`
}

// Project groups tasks under a shared goal
type Project struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Type        ProjectType   `json:"type"`
	Description string        `json:"description"`
	Members     []Member      `json:"members"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"`
	DueDate     string        `json:"dueDate"`
}

// Identity is the credential-less session identity of a device
type Identity struct {
	GuestID         string `json:"guestId"`
	DisplayName     string `json:"displayName"`
	NeedsOnboarding bool   `json:"needsOnboarding"`
}

// CategoryStat is the task count of one category
type CategoryStat struct {
	Name  Category `json:"name"`
	Value int      `json:"value"`
	Color string   `json:"color"`
}

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is a single turn of a chat conversation
type ChatMessage struct {
	ID          string    `json:"id"`
	Role        ChatRole  `json:"role"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"isStreaming,omitempty"`
}
