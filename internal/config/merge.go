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

package config

import "regexp"

// maxDepthCeiling is spec §6.4's upper bound on directory.maxDepth
// (0 ≤ n ≤ 1000).
const maxDepthCeiling = 1000

// MergeDirectoryOptions combines a config file's directory options with
// CLI-supplied overrides per spec §4.8: array-valued fields are a union,
// scalar fields use CLI-wins-if-defined precedence. Regex strings in
// ExcludePatterns are trial-compiled and silently dropped if invalid.
// MaxDepth is clamped into spec §6.4's [0, 1000] range.
func MergeDirectoryOptions(fromConfig, fromCLI DirectoryOptions) DirectoryOptions {
	merged := DirectoryOptions{
		ExcludePatterns: validRegexes(union(fromConfig.ExcludePatterns, fromCLI.ExcludePatterns)),
		Exclude:         union(fromConfig.Exclude, fromCLI.Exclude),
		Extensions:      fromConfig.Extensions,
		Recursive:       fromConfig.Recursive,
		MaxDepth:        fromConfig.MaxDepth,
	}
	if fromCLI.Extensions != nil {
		merged.Extensions = fromCLI.Extensions
	}
	if fromCLI.Recursive != nil {
		merged.Recursive = fromCLI.Recursive
	}
	if fromCLI.MaxDepth != nil {
		merged.MaxDepth = fromCLI.MaxDepth
	}
	merged.MaxDepth = clampMaxDepth(merged.MaxDepth)
	return merged
}

func clampMaxDepth(depth *int) *int {
	if depth == nil {
		return nil
	}
	d := *depth
	switch {
	case d < 0:
		d = 0
	case d > maxDepthCeiling:
		d = maxDepthCeiling
	}
	return &d
}

func union(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func validRegexes(patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
