/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Encryption of table files at rest.

pagedb can encrypt every table file with AES-256-GCM:
  - The key is derived from a passphrase using PBKDF2 with SHA-256
  - The salt is random per data directory and stored in SaltFileName
  - Each file body is sealed with a fresh random nonce, prepended to the
    ciphertext, and the table's qualified name as additional data so a
    file cannot be swapped in under another table's name
*/
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"

	dberrors "pagedb/internal/errors"
)

// SaltFileName is the file holding the key-derivation salt of a data directory.
const SaltFileName = "pagedb.salt"

// SaltSize is the length of a generated salt in bytes.
const SaltSize = 16

// KeyDerivationIterations is the number of PBKDF2 iterations.
const KeyDerivationIterations = 100000

// EncryptionConfig holds the configuration for table file encryption.
type EncryptionConfig struct {
	// Passphrase the key is derived from.
	Passphrase string

	// Salt for key derivation. Use LoadOrCreateSalt to obtain a stable one.
	Salt []byte
}

// Encryptor seals and opens table file bodies.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor derives the key and builds the AES-GCM cipher.
func NewEncryptor(config EncryptionConfig) (*Encryptor, error) {
	if config.Passphrase == "" {
		return nil, errors.New("encryption passphrase must not be empty")
	}
	if len(config.Salt) == 0 {
		return nil, errors.New("encryption salt must not be empty")
	}

	key := pbkdf2.Key([]byte(config.Passphrase), config.Salt, KeyDerivationIterations, 32, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext. The nonce is prepended to the result.
func (e *Encryptor) Encrypt(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.gcm.Seal(nonce, nonce, plaintext, additional), nil
}

// Decrypt opens data produced by Encrypt with the same additional data.
func (e *Encryptor) Decrypt(ciphertext, additional []byte) ([]byte, error) {
	if len(ciphertext) < e.gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce := ciphertext[:e.gcm.NonceSize()]
	return e.gcm.Open(nil, nonce, ciphertext[e.gcm.NonceSize():], additional)
}

// LoadOrCreateSalt reads the salt of dir, creating a random one on first use.
func LoadOrCreateSalt(dir string) ([]byte, error) {
	path := filepath.Join(dir, SaltFileName)
	salt, err := os.ReadFile(path)
	if err == nil {
		if len(salt) != SaltSize {
			return nil, dberrors.CorruptFile(path, "salt has wrong length")
		}
		return salt, nil
	}
	if !os.IsNotExist(err) {
		return nil, dberrors.IOError(path, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dberrors.IOError(dir, err)
	}
	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, dberrors.IOError(path, err)
	}
	return salt, nil
}
