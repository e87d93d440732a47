package enrichment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const (
	maskFill          = "****"
	encryptedPrefix   = "enc:"
	placeholderPrefix = "[ENCRYPTED]"
	encryptionKeySize = 32
)

// maskValue keeps the first and last two characters. Values of four
// characters or fewer are replaced entirely.
func maskValue(v interface{}) string {
	s := []rune(fmt.Sprint(v))
	if len(s) <= 4 {
		return maskFill
	}
	return string(s[:2]) + maskFill + string(s[len(s)-2:])
}

func hashValue(v interface{}) string {
	sum := sha256.Sum256([]byte(fmt.Sprint(v)))
	return hex.EncodeToString(sum[:])
}

// sealer encrypts context values. Without a key it only marks values with
// the placeholder prefix, which is not encryption.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(key string) (*sealer, error) {
	if key == "" {
		return &sealer{}, nil
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("invalid encryption key length: must be %d bytes", encryptionKeySize)
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &sealer{aead: gcm}, nil
}

func (s *sealer) seal(v interface{}) (string, error) {
	plaintext := fmt.Sprint(v)
	if s.aead == nil {
		return placeholderPrefix + plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *sealer) open(value string) (string, error) {
	if s.aead == nil {
		return "", fmt.Errorf("no encryption key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, encryptedPrefix))
	if err != nil {
		return "", err
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	plaintext, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// matchField reports whether a rule's field pattern selects a context key:
// exact key, "*", or trailing-* prefix.
func matchField(pattern, key string) bool {
	return matchPermission(pattern, key)
}
