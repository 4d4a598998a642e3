package pgrepo

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	gperrors "github.com/jrsteele09/go-gate-pass/internal/errors"
)

// Sealed secret format:
// [0]     format version (currently 1)
// [1..12] 12-byte GCM nonce
// [13..]  gcm.Seal output (ciphertext + tag)
const (
	sealFormatVersion byte = 1
	minMasterKeyLen        = 32
	sealKeyLen             = 32
	sealInfo               = "gate-pass identity secret sealing v1"
)

var (
	ErrSealedTooShort         = errors.New("sealed secret too short")
	ErrUnsupportedSealVersion = errors.New("unsupported sealed secret version")
	ErrUnsealFailed           = errors.New("unseal failed")
)

// Sealer encrypts identity secrets at rest with AES-256-GCM. The AES key is derived from the
// configured master key with HKDF-SHA256, and each ciphertext is bound to its (user, version) row
// through the additional data so rows cannot be swapped.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(masterKey []byte) (*Sealer, error) {
	if len(masterKey) < minMasterKeyLen {
		return nil, errors.Wrapf(gperrors.ErrSealingKeyMissing, "need at least %d bytes, got %d", minMasterKeyLen, len(masterKey))
	}

	key := make([]byte, sealKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(sealInfo)), key); err != nil {
		return nil, errors.Wrap(err, "NewSealer hkdf")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "NewSealer aes")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "NewSealer gcm")
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(userID string, version int, plaintext []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+s.aead.Overhead())
	out[0] = sealFormatVersion
	if _, err := io.ReadFull(rand.Reader, out[1:1+nonceSize]); err != nil {
		return nil, errors.Wrap(err, "Sealer.Seal nonce")
	}
	return s.aead.Seal(out, out[1:1+nonceSize], plaintext, additionalData(userID, version)), nil
}

func (s *Sealer) Open(userID string, version int, sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < 1+nonceSize+s.aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	if sealed[0] != sealFormatVersion {
		return nil, ErrUnsupportedSealVersion
	}
	plaintext, err := s.aead.Open(nil, sealed[1:1+nonceSize], sealed[1+nonceSize:], additionalData(userID, version))
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}

func additionalData(userID string, version int) []byte {
	return []byte(userID + "/" + strconv.Itoa(version))
}
