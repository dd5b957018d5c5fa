// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cryptoprim implements the primitive building blocks every pack
// loader composes: PBKDF2 key derivation, AES-256-GCM AEAD, truncated pack
// hashing, constant-time comparison, and secret zeroization. Nothing in
// this package knows about pack formats; internal/packs composes these.
package cryptoprim

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

// KDFIterations is the fixed PBKDF2 iteration count used by both the GRPX
// and GRX2 formats. It is a constant, not configurable, by spec.
const KDFIterations = 100_000

// KeyLength is the derived key size in bytes (AES-256).
const KeyLength = 32

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, KDFIterations, KeyLength, sha256.New)
}

// AESGCMDecrypt authenticates and decrypts ciphertext under key, using iv
// as the GCM nonce and tag as the detached 16-byte authentication tag
// (ciphertext and tag are reassembled before calling Open, since Go's GCM
// API expects them concatenated).
func AESGCMDecrypt(ciphertext, key, iv, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	return gcm.Open(nil, iv, sealed, nil)
}

// AESGCMEncrypt is the inverse of AESGCMDecrypt, used by pack-building
// tooling and by tests constructing fixtures. It returns the ciphertext
// and the detached 16-byte tag separately, matching the on-disk layout.
func AESGCMEncrypt(plaintext, key, iv []byte) (ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(iv))
	if err != nil {
		return nil, nil, err
	}

	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagStart := len(sealed) - gcm.Overhead()
	return sealed[:tagStart], sealed[tagStart:], nil
}

// PackHashSize is the length in bytes of a truncated pack hash.
const PackHashSize = 16

// PackHash returns the first PackHashSize bytes of SHA-256(data).
func PackHash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:PackHashSize]
}

// ConstantTimeEqual reports whether a and b are equal using a
// constant-time comparison. Mandatory for comparing pack hashes so a
// timing side-channel can't help an attacker forge one byte at a time.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites buf with zero bytes in place. Go has no deterministic
// scope-exit destructor, so callers must `defer Zeroize(buf)` immediately
// after a derived key, TMK, or decrypted pack payload is produced.
func Zeroize(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
