package localstore

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "bookshare-cli"

// KeyringStorage keeps values in the OS keychain/credential manager
type KeyringStorage struct {
	service string
}

// NewKeyringStorage creates a keyring-backed storage under the given service name
func NewKeyringStorage(service string) *KeyringStorage {
	return &KeyringStorage{service: service}
}

// Get retrieves a value from the OS keychain/credential manager
func (k *KeyringStorage) Get(key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load %s from keyring: %w", key, err)
	}
	return value, nil
}

// Set persists a value in the OS keychain/credential manager
func (k *KeyringStorage) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to save %s to keyring: %w", key, err)
	}
	return nil
}

// Remove deletes a value from the OS keychain/credential manager
func (k *KeyringStorage) Remove(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}
