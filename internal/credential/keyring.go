package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mail-sorter"

// Keys under which secrets are stored.
const (
	IMAPPassword = "imap-password"
	LLMAPIKey    = "llm-api-key"
)

// Known lists the keys the CLI accepts.
var Known = []string{IMAPPassword, LLMAPIKey}

// ErrNotFound is returned by Get when no secret is stored under the key.
var ErrNotFound = keyring.ErrKeyNotFound

// Store reads and writes secrets in the system keyring.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the first available system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mail-sorter/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mail-sorter-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}

	return NewStore(ring), nil
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Lookup returns the stored secret for key, or fallback when the value is
// already configured or nothing is stored.
func (s *Store) Lookup(key, fallback string) (string, error) {
	if fallback != "" {
		return fallback, nil
	}

	value, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}

	return value, err
}

// IsKnown reports whether key is one of Known.
func IsKnown(key string) bool {
	for _, k := range Known {
		if k == key {
			return true
		}
	}

	return false
}
