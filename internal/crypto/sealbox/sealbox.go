// Package sealbox seals persisted session values at rest with a passphrase-derived key.
package sealbox

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Params
const (
	KeyLen  = 32
	SaltLen = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// ErrShort is returned for blobs that cannot hold a nonce.
var ErrShort = errors.New("sealed blob too short")

func Rand(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// DeriveKey derives a sealing key from passphrase and salt using Argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// Box seals and opens values bound to a store key (used as AAD), so a value
// moved under another key fails to open.
type Box struct{ key []byte }

// New returns a Box for a 32-byte key.
func New(key []byte) (*Box, error) {
	if len(key) != KeyLen {
		return nil, errors.New("sealbox: bad key length")
	}
	return &Box{key: append([]byte(nil), key...)}, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 and a random nonce prefix.
func (b *Box) Seal(name string, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	nonce, err := Rand(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, []byte(name))...)
	return out, nil
}

// Open decrypts a blob produced by Seal under the same name.
func (b *Box) Open(name string, blob []byte) ([]byte, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return nil, ErrShort
	}
	aead, err := chacha20poly1305.NewX(b.key)
	if err != nil {
		return nil, err
	}
	nonce := blob[:chacha20poly1305.NonceSizeX]
	ct := blob[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, []byte(name))
}
