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
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/kraklabs/sentriflow/internal/cryptoprim"
	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/rules"
)

// GRPXHeaderSize is the fixed GRPX header length (spec §6.1).
const GRPXHeaderSize = 76

const (
	grpxMagic     = "GRPX"
	grpxVersion   = 1
	grpxAlgorithm = 1
	grpxKDF       = 1
)

// DefaultGRPXPriority is the merge priority stamped on GRPX packs when the
// caller does not override it (spec §4.4).
const DefaultGRPXPriority = 200

// LoadGRPX decrypts and compiles a GRPX-format pack (spec §4.4, §6.1).
func LoadGRPX(data []byte, licenseKey string, opts ValidateOptions) (LoadedPack, error) {
	if len(data) < GRPXHeaderSize {
		return LoadedPack{}, sferrors.NewFormatError("pack file is too short", "", "", nil)
	}
	if string(data[0:4]) != grpxMagic {
		return LoadedPack{}, sferrors.NewFormatError("unrecognized pack format", "", "", nil)
	}
	version := data[4]
	algorithm := data[5]
	kdf := data[6]
	if version != grpxVersion {
		return LoadedPack{}, sferrors.NewFormatError("unsupported pack version", "", "", nil)
	}
	if algorithm != grpxAlgorithm {
		return LoadedPack{}, sferrors.NewFormatError("unsupported encryption algorithm", "", "", nil)
	}
	if kdf != grpxKDF {
		return LoadedPack{}, sferrors.NewFormatError("unsupported key derivation function", "", "", nil)
	}

	iv := data[12:24]
	tag := data[24:40]
	salt := data[40:72]
	payloadLen := binary.BigEndian.Uint32(data[72:76])

	if GRPXHeaderSize+int(payloadLen) > len(data) {
		return LoadedPack{}, sferrors.NewFormatError("payload length exceeds file size", "", "", nil)
	}
	ciphertext := data[GRPXHeaderSize : GRPXHeaderSize+int(payloadLen)]

	key := cryptoprim.DeriveKey([]byte(licenseKey), salt)
	defer cryptoprim.Zeroize(key)

	plaintext, err := cryptoprim.AESGCMDecrypt(ciphertext, key, iv, tag)
	if err != nil {
		return LoadedPack{}, sferrors.NewDecryptionError("grpx aead decrypt failed", err)
	}
	defer cryptoprim.Zeroize(plaintext)

	var parsed packPlaintext
	if err := json.Unmarshal(plaintext, &parsed); err != nil {
		return LoadedPack{}, sferrors.NewValidationError("decrypted pack payload is not valid", err)
	}

	validUntil, licenseInfo, err := validatePackClaims(parsed, opts)
	if err != nil {
		return LoadedPack{}, err
	}

	compiled, err := compileRuleEntries(parsed.Rules)
	if err != nil {
		return LoadedPack{}, err
	}

	priority := DefaultGRPXPriority
	if parsed.Priority != nil {
		priority = *parsed.Priority
	}

	pack := rules.RulePack{
		Name:      parsed.Name,
		Version:   parsed.Version,
		Publisher: parsed.Publisher,
		Priority:  priority,
		Rules:     compiled,
		Metadata:  &rules.PackMetadata{Description: parsed.Description, License: parsed.License},
	}
	if err := pack.Validate(); err != nil {
		return LoadedPack{}, sferrors.NewPackCorruptedError("pack failed structural validation", err)
	}

	return LoadedPack{Pack: pack, ValidUntil: validUntil, LicenseInfo: licenseInfo}, nil
}

// validatePackClaims reimplements spec §4.4 step 3's in-factory checks as
// plain struct validation: EXPIRED, MACHINE_MISMATCH, ACTIVATION_LIMIT.
func validatePackClaims(parsed packPlaintext, opts ValidateOptions) (time.Time, *LicenseInfo, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var validUntil time.Time
	if parsed.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339, parsed.ValidUntil)
		if err != nil {
			return time.Time{}, nil, sferrors.NewValidationError("validUntil is not a valid ISO-8601 timestamp", err)
		}
		validUntil = t
		if now.After(validUntil) {
			return time.Time{}, nil, sferrors.NewLicenseError(sferrors.Expired, "Pack has expired", "", "Renew the license or download a fresh pack", nil)
		}
	}

	if parsed.LicenseInfo != nil {
		if parsed.LicenseInfo.MachineID != "" && opts.MachineID != "" && parsed.LicenseInfo.MachineID != opts.MachineID {
			return time.Time{}, nil, sferrors.NewLicenseError(sferrors.MachineMismatch, "Pack is not licensed for this machine", "", "Activate the license on this machine", nil)
		}
		if parsed.LicenseInfo.ActivationLimit > 0 && opts.GetActivationCount != nil {
			if opts.GetActivationCount() > parsed.LicenseInfo.ActivationLimit {
				return time.Time{}, nil, sferrors.NewLicenseError(sferrors.ActivationLimit, "Activation limit exceeded", "", "Deactivate another machine or upgrade the license", nil)
			}
		}
	}

	return validUntil, parsed.LicenseInfo, nil
}
