package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltFile        = ".salt"
	saltSize        = 32
	pbkdf2Iteration = 100000
)

// Vault seals small secrets (the OAuth token) at rest with a key bound to
// this machine and user.
type Vault struct {
	key []byte
}

// NewVault derives the vault key from the machine ID, the home directory and
// a per-cache-dir random salt.
func NewVault(cacheDir string) (*Vault, error) {
	salt, err := loadOrCreateSalt(cacheDir)
	if err != nil {
		return nil, NewCryptoError("salt", "failed to prepare salt").WithCause(err)
	}

	machineID, err := machineID()
	if err != nil {
		return nil, NewCryptoError("key_derivation", "failed to read machine ID").WithCause(err)
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil, NewCryptoError("key_derivation", "home directory unavailable").WithCause(err)
	}

	material := machineID + ":" + home
	return &Vault{key: pbkdf2.Key([]byte(material), salt, pbkdf2Iteration, 32, sha256.New)}, nil
}

// Seal encrypts plaintext and returns base64 text.
func (v *Vault) Seal(plaintext []byte) (string, error) {
	if len(plaintext) == 0 {
		return "", NewCryptoError("seal", "plaintext cannot be empty")
	}

	gcm, err := v.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", NewCryptoError("seal", "failed to generate nonce").WithCause(err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

// Open reverses Seal.
func (v *Vault) Open(sealed string) ([]byte, error) {
	if sealed == "" {
		return nil, NewCryptoError("open", "ciphertext cannot be empty")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sealed))
	if err != nil {
		return nil, NewCryptoError("open", "invalid base64 encoding").WithCause(err)
	}

	gcm, err := v.aead()
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, NewCryptoError("open", "ciphertext too short")
	}

	nonce, body := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, NewCryptoError("open", "authentication failed").WithCause(err)
	}
	return plaintext, nil
}

// SealFile marshals value to JSON, seals it and writes it with 0600 permissions.
func (v *Vault) SealFile(path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	sealed, err := v.Seal(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(sealed), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// OpenFile reads a file written by SealFile into value.
func (v *Vault) OpenFile(path string, value any) error {
	sealed, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data, err := v.Open(string(sealed))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, NewCryptoError("cipher", "failed to create cipher").WithCause(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, NewCryptoError("cipher", "failed to create GCM").WithCause(err)
	}
	return gcm, nil
}

func loadOrCreateSalt(cacheDir string) ([]byte, error) {
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, err
	}
	path := filepath.Join(cacheDir, saltFile)

	if salt, err := os.ReadFile(path); err == nil && len(salt) == saltSize {
		return salt, nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0600); err != nil {
		return nil, err
	}
	return salt, nil
}

// machineID reads the systemd/dbus machine ID, falling back to host and uid.
func machineID() (string, error) {
	for _, p := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(p); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id, nil
			}
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getuid()), nil
}
