package remote

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	errs "github.com/trustdev-org/calendar-diary/internal/errors"
	"github.com/trustdev-org/calendar-diary/internal/models"
	"golang.org/x/crypto/argon2"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4
)

// sealMagic prefixes every encrypted blob. Blobs without it are passed
// through unchanged so a plaintext remote can be adopted in place.
var sealMagic = []byte("CDSEAL1\x00")

// Sealed wraps a Store and encrypts blob bodies at rest.
// Blob format: [magic][16-byte salt][12-byte nonce][AES-256-GCM ciphertext].
type Sealed struct {
	inner      Store
	passphrase string

	salt []byte
	aead cipher.AEAD

	mu    sync.Mutex
	cache map[string]cipher.AEAD
}

var _ Store = (*Sealed)(nil)

// NewSealed derives the write key from passphrase with a fresh salt.
// Keys for blobs written under other salts are derived on first read and
// cached for the lifetime of the store.
func NewSealed(inner Store, passphrase string) (*Sealed, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is empty")
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := newAEAD(passphrase, salt)
	if err != nil {
		return nil, err
	}

	return &Sealed{
		inner:      inner,
		passphrase: passphrase,
		salt:       salt,
		aead:       aead,
		cache:      map[string]cipher.AEAD{string(salt): aead},
	}, nil
}

func newAEAD(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return gcm, nil
}

func (s *Sealed) aeadFor(salt []byte) (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if aead, ok := s.cache[string(salt)]; ok {
		return aead, nil
	}

	aead, err := newAEAD(s.passphrase, salt)
	if err != nil {
		return nil, err
	}

	s.cache[string(salt)] = aead

	return aead, nil
}

func (s *Sealed) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealMagic)+saltSize+nonceSize+len(plaintext)+s.aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, s.salt...)
	out = append(out, nonce...)

	return s.aead.Seal(out, nonce, plaintext, nil), nil
}

func (s *Sealed) open(p string, blob []byte) ([]byte, error) {
	if !bytes.HasPrefix(blob, sealMagic) {
		return blob, nil
	}

	body := blob[len(sealMagic):]
	if len(body) < saltSize+nonceSize {
		return nil, fmt.Errorf("%w: %s: encrypted blob too small", errs.ErrFormat, p)
	}

	salt := body[:saltSize]
	nonce := body[saltSize : saltSize+nonceSize]
	ciphertext := body[saltSize+nonceSize:]

	aead, err := s.aeadFor(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decrypt failed (wrong passphrase or corrupt file)", errs.ErrFormat, p)
	}

	return plaintext, nil
}

// Stat passes through to the wrapped store. Sizes are ciphertext sizes.
func (s *Sealed) Stat(ctx context.Context, p string) (models.RemoteEntry, error) {
	return s.inner.Stat(ctx, p)
}

// Read fetches and decrypts a blob.
func (s *Sealed) Read(ctx context.Context, p string) ([]byte, error) {
	blob, err := s.inner.Read(ctx, p)
	if err != nil {
		return nil, err
	}

	return s.open(p, blob)
}

// Write encrypts and stores a blob.
func (s *Sealed) Write(ctx context.Context, p string, data []byte, overwrite bool) error {
	blob, err := s.seal(data)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}

	return s.inner.Write(ctx, p, blob, overwrite)
}

// List passes through to the wrapped store.
func (s *Sealed) List(ctx context.Context, dir string) ([]models.RemoteEntry, error) {
	return s.inner.List(ctx, dir)
}

// Delete passes through to the wrapped store.
func (s *Sealed) Delete(ctx context.Context, p string) error {
	return s.inner.Delete(ctx, p)
}

// Mkdir passes through to the wrapped store.
func (s *Sealed) Mkdir(ctx context.Context, p string) error {
	return s.inner.Mkdir(ctx, p)
}
