package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Relying-party client secrets and LTI consumer secrets must be recoverable
// in plaintext (HTTP Basic auth, OAuth1 HMAC), so they are sealed at rest
// with AES-256-GCM under a master key rather than hashed.

var (
	masterKeyOnce sync.Once
	masterKey     []byte
	masterKeyErr  error
	masterKeyPath string = "" // Can be set via SetMasterKeyPath before first use
)

// Argon2id parameters for deriving the sealing key from the raw key material.
const (
	kdfTime    = 1
	kdfMemory  = 64 * 1024
	kdfThreads = 4
	kdfKeyLen  = 32
)

// kdfSalt is a fixed domain-separation salt: the key material itself is the
// secret input, the KDF only stretches it into a uniform 32-byte AES key.
var kdfSalt = []byte("mercury-sso/secret-sealing/v1")

// SetMasterKeyPath configures where to load the master sealing key from.
// This must be called before any seal/open operations.
// If not set, the key is loaded from the SSO_MASTER_KEY environment variable.
func SetMasterKeyPath(path string) {
	masterKeyPath = path
}

// loadMasterKey loads key material from either:
// 1. File specified by masterKeyPath (if set)
// 2. SSO_MASTER_KEY environment variable
// 3. Generates an ephemeral key for development (NOT for production)
func loadMasterKey() ([]byte, error) {
	var keyMaterial []byte

	if masterKeyPath != "" {
		data, err := os.ReadFile(masterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read master key file: %w", err)
		}
		keyMaterial = data
	} else if envKey := os.Getenv("SSO_MASTER_KEY"); envKey != "" {
		keyMaterial = []byte(envKey)
	} else {
		// Development fallback - sealed secrets won't survive a restart
		keyMaterial = make([]byte, 32)
		if _, err := rand.Read(keyMaterial); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral master key: %w", err)
		}
	}

	return argon2.IDKey(keyMaterial, kdfSalt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen), nil
}

func getMasterKey() ([]byte, error) {
	masterKeyOnce.Do(func() {
		masterKey, masterKeyErr = loadMasterKey()
	})
	return masterKey, masterKeyErr
}

// SealSecret encrypts a provider secret using AES-256-GCM.
// The output format is: [12-byte nonce][ciphertext][16-byte auth tag].
func SealSecret(plaintext []byte) ([]byte, error) {
	key, err := getMasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenSecret decrypts data sealed with SealSecret.
func OpenSecret(sealed []byte) ([]byte, error) {
	key, err := getMasterKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get master key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

// ResetMasterKeyForTesting resets the master key singleton for testing purposes.
// This should ONLY be used in tests.
func ResetMasterKeyForTesting() {
	masterKeyOnce = sync.Once{}
	masterKey = nil
	masterKeyErr = nil
}
