// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// ENCRYPTED SECRETS
// =============================================================================
//
// Format: "ENC:" + base64(salt || nonce || AES-256-GCM ciphertext)
// Key:    PBKDF2-SHA-256(passphrase, salt)

// EncryptedPrefix marks an encrypted config value.
const EncryptedPrefix = "ENC:"

// PassphraseEnv names the variable holding the secret passphrase.
const PassphraseEnv = "HOPLA_CONFIG_PASSPHRASE"

const (
	secretSaltSize = 16
	secretKeySize  = 32
)

// pbkdf2Iterations is a variable so tests can lower it.
var pbkdf2Iterations = 600000

// ErrNoPassphrase is returned when an encrypted value is found but no
// passphrase is available.
var ErrNoPassphrase = errors.New("encrypted value found but " + PassphraseEnv + " is not set")

// IsEncrypted reports whether v carries the ENC: prefix.
func IsEncrypted(v string) bool {
	return strings.HasPrefix(v, EncryptedPrefix)
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, secretKeySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// EncryptSecret encrypts plaintext with passphrase.
func EncryptSecret(plaintext, passphrase string) (string, error) {
	if passphrase == "" {
		return "", ErrNoPassphrase
	}
	salt := make([]byte, secretSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// DecryptSecret reverses EncryptSecret. Values without the prefix are
// returned unchanged.
func DecryptSecret(value, passphrase string) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if passphrase == "" {
		return "", ErrNoPassphrase
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, EncryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted value: %w", err)
	}
	if len(raw) < secretSaltSize {
		return "", errors.New("encrypted value too short")
	}
	salt := raw[:secretSaltSize]
	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return "", err
	}
	rest := raw[secretSaltSize:]
	if len(rest) < gcm.NonceSize() {
		return "", errors.New("encrypted value too short")
	}
	plaintext, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value (wrong passphrase?): %w", err)
	}
	return string(plaintext), nil
}

// DecryptSecrets replaces every encrypted provider api_key with its
// plaintext, reading the passphrase from the environment.
func (c *Config) DecryptSecrets() error {
	passphrase := os.Getenv(PassphraseEnv)
	for name, ps := range c.Providers {
		if !IsEncrypted(ps.APIKey) {
			continue
		}
		plain, err := DecryptSecret(ps.APIKey, passphrase)
		if err != nil {
			return fmt.Errorf("providers.%s.api_key: %w", name, err)
		}
		ps.APIKey = plain
		c.Providers[name] = ps
	}
	return nil
}

// EncryptSecrets encrypts every plaintext provider api_key in place.
func (c *Config) EncryptSecrets(passphrase string) (int, error) {
	count := 0
	for name, ps := range c.Providers {
		if ps.APIKey == "" || IsEncrypted(ps.APIKey) {
			continue
		}
		enc, err := EncryptSecret(ps.APIKey, passphrase)
		if err != nil {
			return count, fmt.Errorf("providers.%s.api_key: %w", name, err)
		}
		ps.APIKey = enc
		c.Providers[name] = ps
		count++
	}
	return count, nil
}
