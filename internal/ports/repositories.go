package ports

import (
	"context"
	"errors"
	"time"

	"github.com/ophion/companion/internal/domain/entities"
)

// Store errors
var (
	ErrStoreDisconnected = errors.New("remote store is not connected")
	ErrUnknownCollection = entities.ErrUnknownCollection
	ErrUnknownField      = entities.ErrUnknownField
	ErrRequiredField     = entities.ErrRequiredField
	ErrRecordNotFound    = errors.New("record not found")
	ErrCacheMiss         = errors.New("cache miss")
)

// Snapshot is the full current set of one collection for one user.
type Snapshot struct {
	Collection entities.Collection
	UserID     string
	Tasks      []entities.Task
	Notes      []entities.Note
}

// Unsubscribe stops delivery for a single subscription.
type Unsubscribe func()

// RemoteStore is the gateway to the hosted document store. Every write
// returns its outcome so callers decide whether to retry or surface it.
type RemoteStore interface {
	// Connect establishes the process-wide connection once. Later calls
	// return the result of the first attempt.
	Connect(ctx context.Context) error
	Connected() bool
	Subscribe(ctx context.Context, collection entities.Collection, userID string, onChange func(Snapshot)) (Unsubscribe, error)
	Add(ctx context.Context, record entities.Record) (string, error)
	Update(ctx context.Context, collection entities.Collection, id string, patch entities.Patch) error
	Delete(ctx context.Context, collection entities.Collection, id string) error
	Close() error
}

// ProjectRepository serves the read-only project catalog
type ProjectRepository interface {
	List(ctx context.Context, filter ProjectFilter) ([]entities.Project, error)
	GetByID(ctx context.Context, id string) (*entities.Project, error)
	Members(ctx context.Context) ([]entities.Member, error)
}

// ProjectFilter narrows project listings
type ProjectFilter struct {
	Type   *entities.ProjectType
	Status *entities.ProjectStatus
}

// CacheRepository defines the interface for cache operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
}

// IdentityStore is device-local key/value storage for the session identity
type IdentityStore interface {
	Load() (guestID, displayName string, err error)
	SaveGuestID(guestID string) error
	SaveDisplayName(name string) error
	Clear() error
}
