// Package secrets encrypts credential material at rest. Values are
// AES-256-CBC with a fresh random IV per encryption, encoded as
// "ivHex:cipherHex" so every stored value is decryptable with nothing
// but the shared key.
package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

var (
	// ErrMalformedValue indicates a stored value that is not in the
	// expected ivHex:cipherHex shape.
	ErrMalformedValue = errors.New("secrets: malformed encrypted value")

	// ErrBadKey indicates a key of the wrong length or encoding.
	ErrBadKey = errors.New("secrets: key must be 64 hex characters")
)

// Codec performs symmetric encryption of short secret strings.
type Codec struct {
	key []byte
}

// NewCodec builds a codec from a 64-character hex key.
func NewCodec(hexKey string) (*Codec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != KeySize {
		return nil, ErrBadKey
	}
	return &Codec{key: key}, nil
}

// NewRandomCodec builds a codec with a transient random key. Values
// encrypted with it become unreadable once the process exits, so it is
// only suitable outside production.
func NewRandomCodec() *Codec {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("secrets: random key: %v", err))
	}
	return &Codec{key: key}
}

// Encrypt returns ivHex:cipherHex for the given plaintext. Each call
// draws a fresh IV, so encrypting the same plaintext twice yields
// different ciphertext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("secrets: draw iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt.
func (c *Codec) Decrypt(value string) (string, error) {
	ivHex, cipherHex, ok := strings.Cut(value, ":")
	if !ok {
		return "", ErrMalformedValue
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrMalformedValue
	}
	ct, err := hex.DecodeString(cipherHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrMalformedValue
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrMalformedValue
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrMalformedValue
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrMalformedValue
		}
	}
	return data[:len(data)-n], nil
}
