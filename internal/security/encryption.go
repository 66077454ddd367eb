package security

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	keyFileName  = ".encryption_key"
	saltFileName = ".encryption_salt"
	saltLength   = 32
)

var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// Encryptor seals sensitive artifacts (user files, exported reports)
// with an AEAD cipher. The key and salt live next to the data
// directory with owner-only permissions.
type Encryptor struct {
	key  []byte
	salt []byte
}

// NewEncryptor loads or creates the key material under dir.
func NewEncryptor(dir string) (*Encryptor, error) {
	key, err := loadOrCreateSecret(filepath.Join(dir, keyFileName), chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	salt, err := loadOrCreateSecret(filepath.Join(dir, saltFileName), saltLength)
	if err != nil {
		return nil, err
	}
	return &Encryptor{key: key, salt: salt}, nil
}

func loadOrCreateSecret(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(data) == size {
		return data, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, secret, 0o600); err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Msg("Generated new encryption secret")
	return secret, nil
}

// Seal encrypts plaintext, prepending the random nonce.
func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, e.salt), nil
}

// Open decrypts a payload produced by Seal.
func (e *Encryptor) Open(ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, e.salt)
}

// SealFile encrypts src into dst with owner-only permissions.
func (e *Encryptor) SealFile(src, dst string) error {
	plaintext, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	sealed, err := e.Seal(plaintext)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, sealed, 0o600)
}
