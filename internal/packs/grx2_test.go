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

package packs

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/sentriflow/internal/cryptoprim"
)

func buildGRX2(t *testing.T, licenseKey, machineID string, portable bool, plaintext []byte) []byte {
	t.Helper()

	ldkSaltBytes := make([]byte, 16)
	_, err := rand.Read(ldkSaltBytes)
	require.NoError(t, err)

	ldkSalt := append([]byte{}, ldkSaltBytes...)
	if !portable {
		ldkSalt = append(ldkSalt, []byte(machineID)...)
	}
	ldk := cryptoprim.DeriveKey([]byte(licenseKey), ldkSalt)

	tmk := make([]byte, 32)
	_, err = rand.Read(tmk)
	require.NoError(t, err)

	wrappedIV := make([]byte, 12)
	_, err = rand.Read(wrappedIV)
	require.NoError(t, err)
	wrappedCiphertext, wrappedTag, err := cryptoprim.AESGCMEncrypt(tmk, ldk, wrappedIV)
	require.NoError(t, err)

	wrapped := wrappedTMK{
		K: base64.StdEncoding.EncodeToString(wrappedCiphertext),
		I: base64.StdEncoding.EncodeToString(wrappedIV),
		T: base64.StdEncoding.EncodeToString(wrappedTag),
		V: 1,
		S: base64.StdEncoding.EncodeToString(ldkSaltBytes),
	}
	wrappedBlock, err := json.Marshal(wrapped)
	require.NoError(t, err)

	payloadIV := make([]byte, 12)
	_, err = rand.Read(payloadIV)
	require.NoError(t, err)
	payloadCiphertext, payloadTag, err := cryptoprim.AESGCMEncrypt(plaintext, tmk, payloadIV)
	require.NoError(t, err)

	packHash := cryptoprim.PackHash(plaintext)

	header := make([]byte, GRX2FixedHeaderSize)
	copy(header[0:4], grx2Magic)
	header[4] = grx2Version
	header[5] = grx2Algorithm
	header[6] = grx2KDF
	header[7] = 1 // key type: TMK
	binary.BigEndian.PutUint16(header[8:10], 1)
	binary.BigEndian.PutUint16(header[10:12], 1)
	copy(header[12:24], payloadIV)
	copy(header[24:40], payloadTag)
	// header[40:72] payload salt left zero-filled (TMK mode)
	binary.BigEndian.PutUint32(header[72:76], uint32(len(payloadCiphertext)))
	copy(header[76:92], packHash)
	flags := byte(grx2FlagExtended)
	if portable {
		flags |= grx2FlagPortable
	}
	header[94] = flags
	binary.BigEndian.PutUint32(header[96:100], uint32(len(wrappedBlock)))

	out := append([]byte{}, header...)
	out = append(out, wrappedBlock...)
	out = append(out, payloadCiphertext...)
	return out
}

func TestLoadGRX2_RoundTripBoundToMachine(t *testing.T) {
	data := buildGRX2(t, testLicenseKey, "machine-123", false, samplePlaintext("2999-01-01T00:00:00Z"))

	loaded, err := LoadGRX2(data, testLicenseKey, "machine-123", ValidateOptions{Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, "acme-defaults", loaded.Pack.Name)
	require.Equal(t, DefaultGRX2Priority, loaded.Pack.Priority)
	require.Len(t, loaded.Pack.Rules, 1)
}

func TestLoadGRX2_BoundPackRejectsWrongMachine(t *testing.T) {
	data := buildGRX2(t, testLicenseKey, "machine-123", false, samplePlaintext("2999-01-01T00:00:00Z"))

	_, err := LoadGRX2(data, testLicenseKey, "machine-999", ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRX2_PortablePackIgnoresMachineID(t *testing.T) {
	data := buildGRX2(t, testLicenseKey, "machine-123", true, samplePlaintext("2999-01-01T00:00:00Z"))

	loaded, err := LoadGRX2(data, testLicenseKey, "any-other-machine", ValidateOptions{Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, "acme-defaults", loaded.Pack.Name)
}

func TestLoadGRX2_RejectsMissingExtendedFlag(t *testing.T) {
	data := buildGRX2(t, testLicenseKey, "machine-123", true, samplePlaintext("2999-01-01T00:00:00Z"))
	data[94] = 0

	_, err := LoadGRX2(data, testLicenseKey, "machine-123", ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRX2_TamperedPackHashFails(t *testing.T) {
	data := buildGRX2(t, testLicenseKey, "machine-123", true, samplePlaintext("2999-01-01T00:00:00Z"))
	data[76] ^= 0xFF

	_, err := LoadGRX2(data, testLicenseKey, "machine-123", ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRX2_WrongLicenseKeyFailsAtTMKUnwrap(t *testing.T) {
	data := buildGRX2(t, testLicenseKey, "machine-123", false, samplePlaintext("2999-01-01T00:00:00Z"))

	_, err := LoadGRX2(data, "wrong-key", "machine-123", ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRX2_RejectsTruncatedHeader(t *testing.T) {
	_, err := LoadGRX2(make([]byte, 10), testLicenseKey, "machine-123", ValidateOptions{})
	require.Error(t, err)
}
