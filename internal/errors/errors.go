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

// Package errors implements SentriFlow's stable error taxonomy.
//
// Every error surfaced by the core carries one of a fixed set of Codes.
// User-facing Message strings never include absolute filesystem paths,
// license material, or exception stack traces; the Detail field carries
// the same information unsanitized and is only logged when DEBUG is set.
package errors

import (
	"encoding/json"
	"fmt"
	"os"
)

// Code is a stable, machine-comparable error classification.
type Code string

const (
	InvalidFormat    Code = "INVALID_FORMAT"
	DecryptionFailed Code = "DECRYPTION_FAILED"
	PackCorrupted    Code = "PACK_CORRUPTED"
	Expired          Code = "EXPIRED"
	MachineMismatch  Code = "MACHINE_MISMATCH"
	ActivationLimit  Code = "ACTIVATION_LIMIT"
	LicenseMissing   Code = "LICENSE_MISSING"
	LicenseInvalid   Code = "LICENSE_INVALID"
	LicenseExpired   Code = "LICENSE_EXPIRED"
	ValidationFailed Code = "VALIDATION_FAILED"
	PathInvalid      Code = "PATH_INVALID"
	RuleExecution    Code = "RULE_EXECUTION_ERROR"
	ConfigInvalid    Code = "CONFIG_INVALID"
	Internal         Code = "INTERNAL"
)

// SentriError is the single error type returned across package boundaries.
//
// Message is safe to print to a user. Detail and Suggestion add context for
// troubleshooting; they are not sanitized, and are only emitted when DEBUG
// is set. Cause is the wrapped underlying error, if
// any, and participates in errors.Is/As via Unwrap.
type SentriError struct {
	Code       Code
	Message    string
	Detail     string
	Suggestion string
	Cause      error
}

func (e *SentriError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Detail)
	}
	return e.Message
}

func (e *SentriError) Unwrap() error { return e.Cause }

// ExitCode maps a Code onto the process exit codes from SentriFlow's
// external interface contract: 0 success, 1 invalid input, 2 rule
// violations, 3 cryptographic/license failure in strict mode.
func (e *SentriError) ExitCode() int {
	switch e.Code {
	case DecryptionFailed, PackCorrupted, Expired, MachineMismatch,
		ActivationLimit, LicenseMissing, LicenseInvalid, LicenseExpired:
		return 3
	case PathInvalid, ConfigInvalid, InvalidFormat, ValidationFailed:
		return 1
	case RuleExecution, Internal:
		return 1
	default:
		return 1
	}
}

func newError(code Code, message, detail, suggestion string, cause error) *SentriError {
	return &SentriError{Code: code, Message: message, Detail: detail, Suggestion: suggestion, Cause: cause}
}

// NewPathError reports a Path Gate rejection (kind, size, boundary, UNC).
// The message is a stable, non-path-disclosing string per spec.
func NewPathError(message, detail, suggestion string, cause error) *SentriError {
	return newError(PathInvalid, message, detail, suggestion, cause)
}

// NewFormatError reports a magic-byte/version/bounds failure during binary parse.
func NewFormatError(message, detail, suggestion string, cause error) *SentriError {
	return newError(InvalidFormat, message, detail, suggestion, cause)
}

// NewDecryptionError reports any AEAD failure or wrong-key condition.
//
// Per spec the Message is always the fixed user-facing string regardless
// of which stage failed; callers should pass the stage-specific reason via
// detail, which is only surfaced when DEBUG is set.
func NewDecryptionError(detail string, cause error) *SentriError {
	return newError(DecryptionFailed, "Invalid license key or corrupted pack", detail, "Verify the license key and re-download the pack", cause)
}

// NewPackCorruptedError reports a pack-hash mismatch or post-decryption JSON parse failure.
func NewPackCorruptedError(detail string, cause error) *SentriError {
	return newError(PackCorrupted, "Pack data is corrupted", detail, "Re-download the pack from its original source", cause)
}

// NewValidationError reports a sandbox timeout or malformed pack-factory output.
func NewValidationError(detail string, cause error) *SentriError {
	return newError(ValidationFailed, "Pack failed validation", detail, "Contact the pack publisher", cause)
}

// NewLicenseError reports a license-layer failure discovered at orchestration
// time (missing/invalid/expired), using the given Code (one of
// LicenseMissing, LicenseInvalid, LicenseExpired, Expired,
// MachineMismatch, ActivationLimit).
func NewLicenseError(code Code, message, detail, suggestion string, cause error) *SentriError {
	return newError(code, message, detail, suggestion, cause)
}

// NewConfigError reports a configuration discovery or parse failure.
func NewConfigError(message, detail, suggestion string, cause error) *SentriError {
	return newError(ConfigInvalid, message, detail, suggestion, cause)
}

// NewInternalError reports a bug or unexpected environment failure.
func NewInternalError(message, detail, suggestion string, cause error) *SentriError {
	return newError(Internal, message, detail, suggestion, cause)
}

// NewRuleExecutionError reports a rule check that panicked or returned an
// error. Per spec these never propagate to callers as errors; the executor
// converts them into a synthetic failing RuleResult instead. The type
// exists so executor code has a uniform way to log the event.
func NewRuleExecutionError(ruleID, detail string, cause error) *SentriError {
	return newError(RuleExecution, "Rule execution failed", fmt.Sprintf("rule %s: %s", ruleID, detail), "", cause)
}

// jsonError is the wire shape used when --json output is requested.
type jsonError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// FatalError prints err (as JSON if jsonMode is set, otherwise as a plain
// message to stderr, with Detail/Suggestion appended only when DEBUG is
// set) and terminates the process with the error's mapped exit code.
//
// Any non-*SentriError is wrapped as an Internal error first so callers can
// pass raw errors from fmt/os without a type assertion.
func FatalError(err error, jsonMode bool) {
	se, ok := err.(*SentriError)
	if !ok {
		se = NewInternalError("Unexpected error", err.Error(), "", err)
	}

	if jsonMode {
		_ = json.NewEncoder(os.Stderr).Encode(jsonError{Code: se.Code, Message: se.Message})
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", se.Message)
		if os.Getenv("DEBUG") != "" {
			if se.Detail != "" {
				fmt.Fprintf(os.Stderr, "  detail: %s\n", se.Detail)
			}
			if se.Suggestion != "" {
				fmt.Fprintf(os.Stderr, "  suggestion: %s\n", se.Suggestion)
			}
			if se.Cause != nil {
				fmt.Fprintf(os.Stderr, "  cause: %s\n", se.Cause)
			}
		}
	}

	os.Exit(se.ExitCode())
}

// AsSentriError unwraps err into a *SentriError if possible, wrapping it as
// an Internal error otherwise. Useful at package boundaries that must
// return a SentriError but call into stdlib/third-party code.
func AsSentriError(err error) *SentriError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*SentriError); ok {
		return se
	}
	return NewInternalError("Unexpected error", err.Error(), "", err)
}
