package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/ophion/companion/internal/ports"
)

// Device storage keys
const (
	KeyGuestID  = "ophion_guest_id"
	KeyUserName = "ophion_user_name"
)

// FileStore keeps the device identity in a small JSON file
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. The file is created on first save.
func NewFileStore(path string) ports.IdentityStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.read()
	if err != nil {
		return "", "", err
	}
	return v.GetString(KeyGuestID), v.GetString(KeyUserName), nil
}

func (s *FileStore) SaveGuestID(guestID string) error {
	return s.save(KeyGuestID, guestID)
}

func (s *FileStore) SaveDisplayName(name string) error {
	return s.save(KeyUserName, name)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove identity file: %w", err)
	}
	return nil
}

func (s *FileStore) save(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.read()
	if err != nil {
		return err
	}
	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}

// read loads the file into a fresh viper instance. A missing file reads as empty.
func (s *FileStore) read() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(s.path)

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	return v, nil
}
