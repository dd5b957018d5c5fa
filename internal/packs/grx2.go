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
	"encoding/base64"
	"encoding/binary"
	"encoding/json"

	"github.com/kraklabs/sentriflow/internal/cryptoprim"
	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/rules"
)

// GRX2FixedHeaderSize is the length of the GRX2 header up to (not
// including) the variable-length wrapped-TMK block (spec §6.2).
const GRX2FixedHeaderSize = 100

const (
	grx2Magic     = "GRX2"
	grx2Version   = 3
	grx2Algorithm = 1
	grx2KDF       = 1
)

const (
	grx2FlagExtended = 1 << 0
	grx2FlagPortable = 1 << 1
)

// DefaultGRX2Priority is the merge priority stamped on GRX2 packs when the
// caller does not override it (spec §4.5 step 7).
const DefaultGRX2Priority = 300

// wrappedTMK is the JSON shape of the embedded wrapped-TMK block:
// {k, i, t, v, s} — base64 encryptedKey, IV, auth tag, version, LDK salt.
type wrappedTMK struct {
	K string `json:"k"`
	I string `json:"i"`
	T string `json:"t"`
	V int    `json:"v"`
	S string `json:"s"`
}

// LoadGRX2 decrypts and compiles a GRX2-extended-format pack (spec §4.5, §6.2).
func LoadGRX2(data []byte, licenseKey string, machineID string, opts ValidateOptions) (LoadedPack, error) {
	if len(data) < GRX2FixedHeaderSize {
		return LoadedPack{}, sferrors.NewFormatError("pack file is too short", "", "", nil)
	}
	if string(data[0:4]) != grx2Magic {
		return LoadedPack{}, sferrors.NewFormatError("unrecognized pack format", "", "", nil)
	}
	version := data[4]
	algorithm := data[5]
	kdf := data[6]
	if version != grx2Version {
		return LoadedPack{}, sferrors.NewFormatError("unsupported pack version", "", "", nil)
	}
	if algorithm != grx2Algorithm {
		return LoadedPack{}, sferrors.NewFormatError("unsupported encryption algorithm", "", "", nil)
	}
	if kdf != grx2KDF {
		return LoadedPack{}, sferrors.NewFormatError("unsupported key derivation function", "", "", nil)
	}

	payloadIV := data[12:24]
	payloadTag := data[24:40]
	payloadSalt := data[40:72]
	payloadLen := binary.BigEndian.Uint32(data[72:76])
	flags := data[94]

	if flags&grx2FlagExtended == 0 {
		return LoadedPack{}, sferrors.NewFormatError("pack requires external activation", "extended flag not set", "", nil)
	}
	portable := flags&grx2FlagPortable != 0

	wrappedLen := binary.BigEndian.Uint32(data[96:100])
	wrappedStart := GRX2FixedHeaderSize
	wrappedEnd := wrappedStart + int(wrappedLen)
	if wrappedEnd > len(data) {
		return LoadedPack{}, sferrors.NewFormatError("wrapped key block length exceeds file size", "", "", nil)
	}
	payloadStart := wrappedEnd
	payloadEnd := payloadStart + int(payloadLen)
	if payloadEnd > len(data) {
		return LoadedPack{}, sferrors.NewFormatError("payload length exceeds file size", "", "", nil)
	}

	var wrapped wrappedTMK
	if err := json.Unmarshal(data[wrappedStart:wrappedEnd], &wrapped); err != nil {
		return LoadedPack{}, sferrors.NewFormatError("wrapped key block is not valid", "", "", err)
	}

	wrappedKey, err := base64.StdEncoding.DecodeString(wrapped.K)
	if err != nil {
		return LoadedPack{}, sferrors.NewFormatError("wrapped key is not valid base64", "", "", err)
	}
	wrappedIV, err := base64.StdEncoding.DecodeString(wrapped.I)
	if err != nil {
		return LoadedPack{}, sferrors.NewFormatError("wrapped key IV is not valid base64", "", "", err)
	}
	wrappedTag, err := base64.StdEncoding.DecodeString(wrapped.T)
	if err != nil {
		return LoadedPack{}, sferrors.NewFormatError("wrapped key tag is not valid base64", "", "", err)
	}
	ldkSaltBytes, err := base64.StdEncoding.DecodeString(wrapped.S)
	if err != nil {
		return LoadedPack{}, sferrors.NewFormatError("LDK salt is not valid base64", "", "", err)
	}

	ldkSalt := make([]byte, 0, len(ldkSaltBytes)+len(machineID))
	ldkSalt = append(ldkSalt, ldkSaltBytes...)
	if !portable {
		ldkSalt = append(ldkSalt, []byte(machineID)...)
	}

	ldk := cryptoprim.DeriveKey([]byte(licenseKey), ldkSalt)
	tmk, err := cryptoprim.AESGCMDecrypt(wrappedKey, ldk, wrappedIV, wrappedTag)
	cryptoprim.Zeroize(ldk)
	if err != nil {
		return LoadedPack{}, sferrors.NewDecryptionError("grx2 tmk unwrap failed", err)
	}
	defer cryptoprim.Zeroize(tmk)

	ciphertext := data[payloadStart:payloadEnd]
	plaintext, err := cryptoprim.AESGCMDecrypt(ciphertext, tmk, payloadIV, payloadTag)
	if err != nil {
		return LoadedPack{}, sferrors.NewDecryptionError("grx2 payload decrypt failed", err)
	}
	defer cryptoprim.Zeroize(plaintext)

	wantHash := data[76:92]
	gotHash := cryptoprim.PackHash(plaintext)
	if !cryptoprim.ConstantTimeEqual(wantHash, gotHash) {
		return LoadedPack{}, sferrors.NewPackCorruptedError("pack hash mismatch", nil)
	}

	_ = payloadSalt // zero-filled in TMK mode (spec §6.2); unread on this path

	var parsed packPlaintext
	if err := json.Unmarshal(plaintext, &parsed); err != nil {
		return LoadedPack{}, sferrors.NewPackCorruptedError("decrypted pack payload is not valid JSON", err)
	}

	validUntil, licenseInfo, err := validatePackClaims(parsed, opts)
	if err != nil {
		return LoadedPack{}, err
	}

	compiled, err := compileRuleEntries(parsed.Rules)
	if err != nil {
		return LoadedPack{}, err
	}

	priority := DefaultGRX2Priority
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
