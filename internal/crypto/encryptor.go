// Package crypto provides AES-256-GCM encryption and decryption functionality
// for securing webhook payloads at rest.
//
// The package uses AES-256-GCM (Galois/Counter Mode) which provides both
// confidentiality and authenticity. Each encryption operation uses a unique
// random nonce to ensure that encrypting the same payload multiple times
// produces different ciphertexts.
//
// Example usage:
//
//	encryptor, err := crypto.NewPayloadEncryptor("my-32-byte-secret-key-here!!")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Encrypt a webhook payload before storage
//	encrypted, err := encryptor.Encrypt(payload)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Decrypt when serving the payload back
//	decrypted, err := encryptor.Decrypt(encrypted)
//	if err != nil {
//		log.Fatal(err)
//	}
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
)

// PayloadEncryptor handles encryption and decryption of webhook payloads
// using AES-256-GCM. It provides authenticated encryption, which means both
// confidentiality and integrity protection for the stored data.
//
// The encryptor is safe for concurrent use by multiple goroutines.
type PayloadEncryptor struct {
	key []byte // 32-byte AES-256 encryption key
}

// NewPayloadEncryptor creates a new PayloadEncryptor with the provided
// encryption key.
//
// The key parameter is processed using PBKDF2 key derivation to ensure it's
// exactly 32 bytes for AES-256 and cryptographically strong regardless of
// input length. This is more secure than simple padding or truncation.
//
// For security, use a strong passphrase or random key. The key should be
// stored securely (e.g., in environment variables) and never hardcoded in
// source code.
//
// Parameters:
//   - key: The encryption key as a string. Must not be empty.
//
// Returns:
//   - *PayloadEncryptor: A new encryptor instance
//   - error: An error if the key is empty
func NewPayloadEncryptor(key string) (*PayloadEncryptor, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	// Use PBKDF2 to derive a proper 32-byte key from the input
	salt := []byte("webhook-subscriber-salt") // Static salt for deterministic key derivation
	derivedKey := pbkdf2.Key([]byte(key), salt, 10000, 32, sha256.New)

	return &PayloadEncryptor{key: derivedKey}, nil
}

// Encrypt encrypts a payload using AES-256-GCM and returns the result as
// base64-encoded bytes suitable for storage.
//
// The encryption process:
// 1. Generates a cryptographically random nonce for each encryption
// 2. Encrypts the payload using AES-256-GCM with the nonce
// 3. Prepends the nonce to the ciphertext
// 4. Encodes the entire result (nonce + ciphertext) as base64
//
// Empty payloads are returned as-is without encryption. Each call to Encrypt
// with the same payload will produce different ciphertexts due to the random
// nonce.
func (e *PayloadEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	// Encode to base64 so the stored value stays printable
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(ciphertext)))
	base64.StdEncoding.Encode(encoded, ciphertext)
	return encoded, nil
}

// Decrypt decrypts base64-encoded ciphertext that was produced by Encrypt
// and returns the original payload.
//
// The function performs integrity verification as part of the GCM
// decryption, so tampered or corrupted ciphertexts result in an error.
// Empty inputs are returned as-is without decryption.
func (e *PayloadEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, nil
	}

	data := make([]byte, base64.StdEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.StdEncoding.Decode(data, ciphertext)
	if err != nil {
		return nil, errors.InternalError("failed to decode ciphertext", err)
	}
	data = data[:n]

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return nil, errors.ValidationError("ciphertext too short")
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return nil, errors.InternalError("failed to decrypt", err)
	}

	return plaintext, nil
}
