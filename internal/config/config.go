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

// Package config discovers and parses SentriFlow's YAML config file (spec
// §6.4, expanded in §6.4a): the distilled spec's importable-JS-module
// config collapses, in this Go core, to sentriflow.yaml or
// .sentriflowrc.yaml, found by the same bounded parent-directory walk the
// teacher uses for .cie/project.yaml (cmd/cie/config.go: findConfigFile).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"gopkg.in/yaml.v3"
)

// maxWalkLevels bounds the parent-directory search (spec §4.8: "a bounded
// number of levels (10)").
const maxWalkLevels = 10

// candidateNames is probed, in order, at every directory level. The
// original importable-module design probes four JS/TS filenames; this
// core's config format is YAML,
// so the probe list is .yaml/.yml variants of the same two base names.
var candidateNames = []string{"sentriflow.yaml", "sentriflow.yml", ".sentriflowrc.yaml", ".sentriflowrc.yml"}

// DirectoryOptions is the directory-scan configuration block (spec §6.4).
type DirectoryOptions struct {
	ExcludePatterns []string `yaml:"excludePatterns,omitempty"`
	Extensions      []string `yaml:"extensions,omitempty"`
	Recursive       *bool    `yaml:"recursive,omitempty"`
	MaxDepth        *int     `yaml:"maxDepth,omitempty"`
	Exclude         []string `yaml:"exclude,omitempty"`
}

// RulePackRef is one config-declared rule pack (spec §4.6 step 2: "each
// carries its own declared priority").
type RulePackRef struct {
	Path     string `yaml:"path"`
	Priority int    `yaml:"priority"`
}

// RuleWire is one config-declared literal rule (spec §6.4's legacy
// `rules[]` field), carrying the same DeclarativeCheck vocabulary as a JSON
// rule file, expressed with YAML tags since this file is YAML, not JSON.
type RuleWire struct {
	ID       string       `yaml:"id"`
	Selector string       `yaml:"selector,omitempty"`
	Vendor   []string     `yaml:"vendor,omitempty"`
	Metadata MetadataWire `yaml:"metadata"`
	Check    CheckWire    `yaml:"check"`
}

// MetadataWire mirrors rules.Metadata with YAML tags.
type MetadataWire struct {
	Level       string   `yaml:"level"`
	Remediation string   `yaml:"remediation,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// CheckWire mirrors spec §6.3's DeclarativeCheck sum type with YAML tags.
type CheckWire struct {
	Kind       string      `yaml:"kind"`
	Pattern    string      `yaml:"pattern,omitempty"`
	Flags      string      `yaml:"flags,omitempty"`
	Text       string      `yaml:"text,omitempty"`
	Selector   string      `yaml:"selector,omitempty"`
	Conditions []CheckWire `yaml:"conditions,omitempty"`
	Code       string      `yaml:"code,omitempty"`
}

// File is the top-level config shape (spec §6.4):
// {rules?, disable?, includeDefaults?, rulePacks?, jsonRules?, directory?, filterSpecialIps?}.
type File struct {
	Rules            []RuleWire       `yaml:"rules,omitempty"`
	Disable          []string         `yaml:"disable,omitempty"`
	IncludeDefaults  *bool            `yaml:"includeDefaults,omitempty"`
	RulePacks        []RulePackRef    `yaml:"rulePacks,omitempty"`
	JSONRules        []string         `yaml:"jsonRules,omitempty"`
	Directory        DirectoryOptions `yaml:"directory,omitempty"`
	FilterSpecialIPs bool             `yaml:"filterSpecialIps,omitempty"`
}

// IncludesDefaults reports whether default rules should be seeded,
// defaulting to true when the field is absent.
func (f File) IncludesDefaults() bool {
	if f.IncludeDefaults == nil {
		return true
	}
	return *f.IncludeDefaults
}

// Find walks up from startDir looking for a config file, probing
// candidateNames at each level, bounded to maxWalkLevels ancestors (spec
// §4.8). Returns "", nil if none is found — an absent config file is not
// an error; callers fall back to defaults-only resolution.
func Find(startDir string) (string, error) {
	dir := startDir
	for level := 0; level <= maxWalkLevels; level++ {
		for _, name := range candidateNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// Load reads and parses the config file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from Find's bounded walk or an explicit caller-supplied value already validated by the Path Gate
	if err != nil {
		return File{}, sferrors.NewConfigError("Cannot read configuration file", fmt.Sprintf("failed to read %s", path), "check file permissions", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, sferrors.NewConfigError("Invalid configuration format", "YAML parsing failed", "fix syntax errors in the config file", err)
	}
	return f, nil
}
