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

// Package packs implements the three pack loaders (GRPX, GRX2, plain JSON
// rule files) described in spec §4.4–§4.5 and §6.1–§6.3. Each loader turns
// bytes on disk into a rules.RulePack the resolver can merge.
package packs

import (
	"encoding/json"
	"fmt"
	"time"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/exprlang"
	"github.com/kraklabs/sentriflow/internal/rules"
)

// LicenseInfo is the in-pack activation record validated during load.
type LicenseInfo struct {
	MachineID       string `json:"machineId,omitempty"`
	ActivationLimit int    `json:"activationLimit,omitempty"`
}

// ValidateOptions parameterizes the post-decrypt validation step shared by
// GRPX and GRX2 (spec §4.4 step 3 / §4.5 step 6): the caller's machine id
// and a way to learn the current activation count, so the loader can
// signal EXPIRED / MACHINE_MISMATCH / ACTIVATION_LIMIT without a sandboxed
// factory call.
type ValidateOptions struct {
	MachineID          string
	GetActivationCount func() int
	Now                time.Time
}

// LoadedPack is the in-memory result of loading an encrypted pack (spec §3).
type LoadedPack struct {
	Pack        rules.RulePack
	ValidUntil  time.Time
	LicenseInfo *LicenseInfo
}

// packPlaintext is the JSON shape produced once a GRPX or GRX2 payload is
// decrypted. GRPX rule entries carry a free-form checkSource string
// (compiled through internal/exprlang); GRX2 and JSON rule-file entries
// carry a native DeclarativeCheck object — see checkSpecWire in checkjson.go.
type packPlaintext struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Publisher   string          `json:"publisher"`
	Description string          `json:"description,omitempty"`
	License     string          `json:"license,omitempty"`
	Priority    *int            `json:"priority,omitempty"`
	Rules       []ruleEntryWire `json:"rules"`
	ValidUntil  string          `json:"validUntil"`
	LicenseInfo *LicenseInfo    `json:"licenseInfo,omitempty"`
}

type ruleEntryWire struct {
	ID          string         `json:"id"`
	Selector    string         `json:"selector,omitempty"`
	Vendor      stringOrSlice  `json:"vendor,omitempty"`
	Category    string         `json:"category,omitempty"`
	Metadata    metadataWire   `json:"metadata"`
	CheckSource string         `json:"checkSource,omitempty"`
	Check       *checkSpecWire `json:"check,omitempty"`
}

// stringOrSlice accepts the JSON vendor field as either a bare string or an
// array of strings, per spec §3 ("single string or set").
type stringOrSlice []string

func (s *stringOrSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = []string{single}
		}
		return nil
	}
	var multi []string
	if err := json.Unmarshal(data, &multi); err != nil {
		return err
	}
	*s = multi
	return nil
}

type securityWire struct {
	CWE        []string `json:"cwe,omitempty"`
	CVSSScore  float64  `json:"cvssScore,omitempty"`
	CVSSVector string   `json:"cvssVector,omitempty"`
}

type metadataWire struct {
	Level       string        `json:"level"`
	Remediation string        `json:"remediation,omitempty"`
	Security    *securityWire `json:"security,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

func (m metadataWire) toMetadata() rules.Metadata {
	md := rules.Metadata{
		Level:       rules.Level(m.Level),
		Remediation: m.Remediation,
		Tags:        m.Tags,
	}
	if m.Security != nil {
		md.Security = &rules.Security{
			CWE:        m.Security.CWE,
			CVSSScore:  m.Security.CVSSScore,
			CVSSVector: m.Security.CVSSVector,
		}
	}
	return md
}

// compileRuleEntries turns the wire rule list into rules.Rule values. GRPX
// entries (checkSource non-empty) go through exprlang; GRX2/JSON entries
// (check non-nil) go through the native CheckSpec path. Either path ends
// at rules.ToCheck, never at a general-purpose evaluator.
func compileRuleEntries(entries []ruleEntryWire) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(entries))
	for _, e := range entries {
		var spec rules.CheckSpec
		var err error
		switch {
		case e.Check != nil:
			spec, err = e.Check.toCheckSpec()
		case e.CheckSource != "":
			spec, err = exprlang.Parse(e.CheckSource)
		default:
			err = fmt.Errorf("rule %s has neither check nor checkSource", e.ID)
		}
		if err != nil {
			return nil, sferrors.NewValidationError(fmt.Sprintf("rule %s: %s", e.ID, err), err)
		}
		out = append(out, rules.Rule{
			ID:       e.ID,
			Selector: e.Selector,
			Vendor:   []string(e.Vendor),
			Metadata: e.Metadata.toMetadata(),
			Check:    rules.ToCheck(spec),
		})
	}
	return out, nil
}
