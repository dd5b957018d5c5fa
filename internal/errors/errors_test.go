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

package errors

import (
	"errors"
	"testing"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{DecryptionFailed, 3},
		{PackCorrupted, 3},
		{Expired, 3},
		{MachineMismatch, 3},
		{ActivationLimit, 3},
		{LicenseMissing, 3},
		{LicenseInvalid, 3},
		{LicenseExpired, 3},
		{PathInvalid, 1},
		{ConfigInvalid, 1},
		{InvalidFormat, 1},
		{ValidationFailed, 1},
		{RuleExecution, 1},
		{Internal, 1},
	}
	for _, c := range cases {
		se := newError(c.code, "msg", "", "", nil)
		if got := se.ExitCode(); got != c.want {
			t.Errorf("Code %s: ExitCode() = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestDecryptionErrorMessageIsStable(t *testing.T) {
	e1 := NewDecryptionError("AEAD tag mismatch on GRPX payload", nil)
	e2 := NewDecryptionError("TMK unwrap failed", nil)

	if e1.Message != e2.Message {
		t.Fatalf("expected identical user-facing messages regardless of stage, got %q and %q", e1.Message, e2.Message)
	}
	if e1.Message != "Invalid license key or corrupted pack" {
		t.Fatalf("unexpected message: %q", e1.Message)
	}
	if e1.Detail == e2.Detail {
		t.Fatalf("expected distinct detail strings for troubleshooting")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	se := NewInternalError("wrapped", "", "", cause)
	if !errors.Is(se, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
}

func TestErrorStringIncludesDetail(t *testing.T) {
	se := NewConfigError("Invalid configuration format", "YAML parsing failed", "", nil)
	if se.Error() != "Invalid configuration format: YAML parsing failed" {
		t.Fatalf("unexpected Error() string: %q", se.Error())
	}
}
