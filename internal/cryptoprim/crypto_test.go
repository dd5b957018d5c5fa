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

package cryptoprim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	k1 := DeriveKey([]byte("license-key"), salt)
	k2 := DeriveKey([]byte("license-key"), salt)
	require.Equal(t, k1, k2)
	require.Len(t, k1, KeyLength)
}

func TestDeriveKey_DifferentPasswordDifferentKey(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	k1 := DeriveKey([]byte("license-key-a"), salt)
	k2 := DeriveKey([]byte("license-key-b"), salt)
	require.False(t, bytes.Equal(k1, k2))
}

func TestAESGCMRoundTrip(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt-value-padded-to-something"))
	iv := []byte("123456789012") // 12 bytes
	plaintext := []byte(`{"name":"test-pack"}`)

	ciphertext, tag, err := AESGCMEncrypt(plaintext, key, iv)
	require.NoError(t, err)
	require.Len(t, tag, 16)

	got, err := AESGCMDecrypt(ciphertext, key, iv, tag)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestAESGCMDecrypt_WrongKeyFails(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt-value-padded-to-something"))
	wrongKey := DeriveKey([]byte("other"), []byte("salt-value-padded-to-something"))
	iv := []byte("123456789012")
	plaintext := []byte("secret rule pack contents")

	ciphertext, tag, err := AESGCMEncrypt(plaintext, key, iv)
	require.NoError(t, err)

	_, err = AESGCMDecrypt(ciphertext, wrongKey, iv, tag)
	require.Error(t, err)
}

func TestAESGCMDecrypt_TamperedCiphertextFails(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("salt-value-padded-to-something"))
	iv := []byte("123456789012")
	plaintext := []byte("secret rule pack contents")

	ciphertext, tag, err := AESGCMEncrypt(plaintext, key, iv)
	require.NoError(t, err)

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0xFF

	_, err = AESGCMDecrypt(tampered, key, iv, tag)
	require.Error(t, err)
}

func TestPackHash_Length(t *testing.T) {
	h := PackHash([]byte("some plaintext"))
	require.Len(t, h, PackHashSize)
}

func TestPackHash_FlippedByteChangesHash(t *testing.T) {
	a := []byte("payload-content-one")
	b := append([]byte(nil), a...)
	b[0] ^= 0x01

	require.NotEqual(t, PackHash(a), PackHash(b))
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, ConstantTimeEqual([]byte("abc"), []byte("abc")))
	require.False(t, ConstantTimeEqual([]byte("abc"), []byte("abd")))
	require.False(t, ConstantTimeEqual([]byte("abc"), []byte("abcd")))
}

func TestZeroize(t *testing.T) {
	buf := []byte("super-secret-key-material")
	Zeroize(buf)
	for _, b := range buf {
		require.Zero(t, b)
	}
}
