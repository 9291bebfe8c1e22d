package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// FingerprintLength is the number of hex characters in a content
	// fingerprint.
	FingerprintLength = 16
)

// Engine performs symmetric encryption, decryption, and content
// fingerprinting with a single derived key.
//
// Engine is safe for concurrent use: the key is immutable after
// construction and every Encrypt call draws a fresh IV.
type Engine struct {
	key   []byte
	block cipher.Block
}

// DeriveKey derives a 32-byte AES key from arbitrary key material.
// Material that is exactly 32 bytes is used verbatim; anything else is
// hashed with SHA-256 to produce the key.
func DeriveKey(material []byte) []byte {
	if len(material) == KeySize {
		key := make([]byte, KeySize)
		copy(key, material)
		return key
	}
	sum := sha256.Sum256(material)
	return sum[:]
}

// NewEngine creates an Engine from the given key material.
// See DeriveKey for how the key is derived.
func NewEngine(material []byte) (*Engine, error) {
	if len(material) == 0 {
		return nil, fmt.Errorf("key material cannot be empty")
	}

	key := DeriveKey(material)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	return &Engine{key: key, block: block}, nil
}

// Encrypt encrypts plaintext with AES-CBC and PKCS7 padding.
// The returned slice is IV‖ciphertext, with a fresh random IV per call.
func (e *Engine) Encrypt(plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)

	mode := cipher.NewCBCEncrypter(e.block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)

	return out, nil
}

// Decrypt reverses Encrypt. The first block of data is taken as the IV.
// It returns a DecryptionError on truncated input, ciphertext that is
// not block-aligned, or invalid padding.
func (e *Engine) Decrypt(data []byte) ([]byte, error) {
	if len(data) < 2*aes.BlockSize {
		return nil, NewDecryptionError("ciphertext too short", nil)
	}

	iv := data[:aes.BlockSize]
	ciphertext := data[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, NewDecryptionError("ciphertext not block-aligned", nil)
	}

	plaintext := make([]byte, len(ciphertext))
	mode := cipher.NewCBCDecrypter(e.block, iv)
	mode.CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, NewDecryptionError("invalid padding", err)
	}

	return unpadded, nil
}

// EncryptString encrypts a UTF-8 string and returns the base64 encoding
// of IV‖ciphertext.
func (e *Engine) EncryptString(plaintext string) (string, error) {
	data, err := e.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecryptString reverses EncryptString. A non-base64 input is reported
// as a DecryptionError.
func (e *Engine) DecryptString(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", NewDecryptionError("invalid base64", err)
	}
	plaintext, err := e.Decrypt(data)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Fingerprint returns the first 16 hex characters of the SHA-256 digest
// of the UTF-8 bytes of content. It is deterministic and used for
// deduplication without storing the content itself.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:FingerprintLength]
}

// pkcs7Pad pads data to a multiple of blockSize. A full block of padding
// is appended when data is already aligned.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

// pkcs7Unpad removes PKCS7 padding, validating every padding byte.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}

	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, fmt.Errorf("invalid padding length %d", padLen)
	}

	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("inconsistent padding bytes")
		}
	}

	return data[:len(data)-padLen], nil
}
