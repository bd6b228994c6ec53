// Package localstore provides the durable key/value mirror behind the session store.
//
// It plays the part browser local storage plays for a web client: a handful of
// string values under fixed keys that survive process restarts.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("key not found")

// Storage is a durable string key/value store.
// Remove of a missing key is not an error.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

const configDirName = "bookshare"

// DefaultDir returns ~/.config/bookshare
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName), nil
}

// Open returns the backend named by backend. path may be empty to use the default location.
func Open(backend, path string) (Storage, error) {
	switch backend {
	case "file", "":
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "session.json")
		}
		return NewFileStorage(path), nil
	case "keyring":
		return NewKeyringStorage(keyringService), nil
	case "sqlite":
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "bookshare.sqlite")
		}
		return NewSQLiteStorage(path)
	default:
		return nil, fmt.Errorf("unknown storage backend '%s'", backend)
	}
}
