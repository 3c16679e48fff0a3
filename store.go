package xfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// SessionStore persists one encoded session token.
// Load returns "" and a nil error when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// defaultSessionName is the key under which the user's session is stored.
const defaultSessionName = "default"

// SessionDir returns the directory for persisted sessions.
func SessionDir(override string) string {
	if override != "" {
		return override
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".go-xfeed", "sessions")
}

// FileStore keeps the session token in a JSON file.
type FileStore struct {
	Dir  string
	Name string
	// TTL expires sessions older than this. Zero keeps them forever.
	TTL time.Duration
}

// savedSession is the on-disk form of a FileStore session.
type savedSession struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"saved_at"`
}

func (s *FileStore) path() string {
	name := s.Name
	if name == "" {
		name = defaultSessionName
	}
	return filepath.Join(SessionDir(s.Dir), name+".json")
}

// Save implements SessionStore.
func (s *FileStore) Save(_ context.Context, token string) error {
	path := s.path()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(savedSession{Token: token, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	slog.Debug("session saved", slog.String("path", path))
	return nil
}

// Load implements SessionStore.
func (s *FileStore) Load(_ context.Context) (string, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return "", fmt.Errorf("%w: session file: %v", ErrCookieInvalid, err)
	}
	if s.TTL > 0 && time.Since(saved.SavedAt) > s.TTL {
		slog.Debug("session expired", slog.Time("saved_at", saved.SavedAt))
		return "", nil
	}
	return saved.Token, nil
}

// Clear implements SessionStore.
func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

var sessionBucket = []byte("sessions")

// BoltStore keeps session tokens in a bbolt database.
type BoltStore struct {
	db   *bolt.DB
	name []byte
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, name: []byte(defaultSessionName)}, nil
}

// Close releases the database file lock.
func (s *BoltStore) Close() error { return s.db.Close() }

// Load implements SessionStore.
func (s *BoltStore) Load(_ context.Context) (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(sessionBucket); b != nil {
			token = string(b.Get(s.name))
		}
		return nil
	})
	return token, err
}

// Save implements SessionStore.
func (s *BoltStore) Save(_ context.Context, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Put(s.name, []byte(token))
	})
}

// Clear implements SessionStore.
func (s *BoltStore) Clear(_ context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(s.name)
	})
}
