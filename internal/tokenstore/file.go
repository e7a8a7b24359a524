package tokenstore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

var ErrCorrupt = errors.New("token file is corrupt or sealed with another key")

// FileStore keeps the token in a small JSON document on disk. When a seal key
// is configured the value is encrypted with NaCl secretbox.
type FileStore struct {
	path string
	key  *[32]byte
	mu   sync.Mutex
}

func NewFileStore(path string, sealKey string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("token file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("prepare token directory: %w", err)
	}

	store := &FileStore{path: path}
	if sealKey != "" {
		key := sha256.Sum256([]byte(sealKey))
		store.key = &key
	}

	return store, nil
}

func (s *FileStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return "", nil
	}

	var doc map[string]string
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", ErrCorrupt
	}

	value := doc[StorageKey]
	if value == "" || s.key == nil {
		return value, nil
	}

	return s.open(value)
}

func (s *FileStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value := token
	if s.key != nil {
		sealed, err := s.seal(token)
		if err != nil {
			return err
		}
		value = sealed
	}

	data, err := json.Marshal(map[string]string{StorageKey: value})
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(token string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	out := secretbox.Seal(nonce[:], []byte(token), &nonce, s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *FileStore) open(value string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])

	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, s.key)
	if !ok {
		return "", ErrCorrupt
	}

	return string(plain), nil
}
