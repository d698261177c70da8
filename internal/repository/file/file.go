// Package file is a Store keeping one file per key under the user's config directory.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/and161185/slotguard/internal/crypto/sealbox"
	"github.com/and161185/slotguard/internal/errs"
)

const saltFile = ".salt"

var reKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// DefaultDir returns $XDG_CONFIG_HOME/slotguard or ~/.config/slotguard.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "slotguard")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "slotguard")
}

// Store writes values as 0600 files. With a passphrase, values are sealed at rest.
type Store struct {
	dir string
	box *sealbox.Box // nil when unsealed
}

// New prepares dir. An empty passphrase stores plaintext.
func New(dir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &Store{dir: dir}
	if passphrase == "" {
		return s, nil
	}
	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, err
	}
	box, err := sealbox.New(sealbox.DeriveKey([]byte(passphrase), salt))
	if err != nil {
		return nil, err
	}
	s.box = box
	return s, nil
}

// ErrBadSalt is returned when the salt file exists but cannot be the one values were sealed with.
var ErrBadSalt = errors.New("file store: corrupt salt file")

func loadOrCreateSalt(p string) ([]byte, error) {
	b, err := os.ReadFile(p)
	switch {
	case err == nil && len(b) == sealbox.SaltLen:
		return b, nil
	case err == nil:
		return nil, fmt.Errorf("%w: %s has %d bytes, want %d", ErrBadSalt, p, len(b), sealbox.SaltLen)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	salt, err := sealbox.Rand(sealbox.SaltLen)
	if err != nil {
		return nil, err
	}
	return salt, os.WriteFile(p, salt, 0o600)
}

func (s *Store) path(key string) (string, error) {
	if !reKey.MatchString(key) || key == saltFile || key == "." || key == ".." {
		return "", fmt.Errorf("file store: bad key %q", key)
	}
	return filepath.Join(s.dir, key), nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.box == nil {
		return b, nil
	}
	pt, err := s.box.Open(key, b)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return pt, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if s.box != nil {
		if value, err = s.box.Seal(key, value); err != nil {
			return err
		}
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *Store) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
