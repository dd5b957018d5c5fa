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
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/sentriflow/internal/cryptoprim"
)

const testLicenseKey = "test-license-key-0001"

func buildGRPX(t *testing.T, licenseKey string, plaintext []byte) []byte {
	t.Helper()

	salt := make([]byte, 32)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	iv := make([]byte, 12)
	_, err = rand.Read(iv)
	require.NoError(t, err)

	key := cryptoprim.DeriveKey([]byte(licenseKey), salt)
	ciphertext, tag, err := cryptoprim.AESGCMEncrypt(plaintext, key, iv)
	require.NoError(t, err)

	header := make([]byte, GRPXHeaderSize)
	copy(header[0:4], grpxMagic)
	header[4] = grpxVersion
	header[5] = grpxAlgorithm
	header[6] = grpxKDF
	copy(header[12:24], iv)
	copy(header[24:40], tag)
	copy(header[40:72], salt)
	binary.BigEndian.PutUint32(header[72:76], uint32(len(ciphertext)))

	return append(header, ciphertext...)
}

func samplePlaintext(validUntil string) []byte {
	return []byte(`{
		"name": "acme-defaults",
		"version": "1.0.0",
		"publisher": "acme",
		"validUntil": "` + validUntil + `",
		"rules": [
			{
				"id": "NET-001",
				"metadata": {"level": "error", "remediation": "use SSH instead of telnet"},
				"checkSource": "not_contains(\"transport input telnet\")"
			}
		]
	}`)
}

func TestLoadGRPX_RoundTrip(t *testing.T) {
	data := buildGRPX(t, testLicenseKey, samplePlaintext("2999-01-01T00:00:00Z"))

	loaded, err := LoadGRPX(data, testLicenseKey, ValidateOptions{Now: time.Now()})
	require.NoError(t, err)
	require.Equal(t, "acme-defaults", loaded.Pack.Name)
	require.Equal(t, DefaultGRPXPriority, loaded.Pack.Priority)
	require.Len(t, loaded.Pack.Rules, 1)
	require.Equal(t, "NET-001", loaded.Pack.Rules[0].ID)
}

func TestLoadGRPX_WrongLicenseKeyFails(t *testing.T) {
	data := buildGRPX(t, testLicenseKey, samplePlaintext("2999-01-01T00:00:00Z"))

	_, err := LoadGRPX(data, "wrong-key", ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRPX_ExpiredPackFails(t *testing.T) {
	data := buildGRPX(t, testLicenseKey, samplePlaintext("2000-01-01T00:00:00Z"))

	_, err := LoadGRPX(data, testLicenseKey, ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRPX_TamperedCiphertextFails(t *testing.T) {
	data := buildGRPX(t, testLicenseKey, samplePlaintext("2999-01-01T00:00:00Z"))
	data[len(data)-1] ^= 0xFF

	_, err := LoadGRPX(data, testLicenseKey, ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRPX_RejectsBadMagic(t *testing.T) {
	data := buildGRPX(t, testLicenseKey, samplePlaintext("2999-01-01T00:00:00Z"))
	copy(data[0:4], "XXXX")

	_, err := LoadGRPX(data, testLicenseKey, ValidateOptions{Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRPX_RejectsTruncatedHeader(t *testing.T) {
	_, err := LoadGRPX(make([]byte, 10), testLicenseKey, ValidateOptions{})
	require.Error(t, err)
}

func TestLoadGRPX_MachineMismatchFails(t *testing.T) {
	plaintext := []byte(`{
		"name": "bound",
		"version": "1.0.0",
		"publisher": "acme",
		"validUntil": "2999-01-01T00:00:00Z",
		"licenseInfo": {"machineId": "machine-a"},
		"rules": [{"id": "NET-001", "metadata": {"level": "warning"}, "checkSource": "contains(\"x\")"}]
	}`)
	data := buildGRPX(t, testLicenseKey, plaintext)

	_, err := LoadGRPX(data, testLicenseKey, ValidateOptions{MachineID: "machine-b", Now: time.Now()})
	require.Error(t, err)
}

func TestLoadGRPX_ActivationLimitExceededFails(t *testing.T) {
	plaintext := []byte(`{
		"name": "bound",
		"version": "1.0.0",
		"publisher": "acme",
		"validUntil": "2999-01-01T00:00:00Z",
		"licenseInfo": {"activationLimit": 1},
		"rules": [{"id": "NET-001", "metadata": {"level": "warning"}, "checkSource": "contains(\"x\")"}]
	}`)
	data := buildGRPX(t, testLicenseKey, plaintext)

	_, err := LoadGRPX(data, testLicenseKey, ValidateOptions{
		Now:                time.Now(),
		GetActivationCount: func() int { return 2 },
	})
	require.Error(t, err)
}
