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

// Package pathgate validates every filesystem path the core touches before
// it is opened: config files, JSON rule files, and pack files. See
// SentriFlow's component design for the full algorithm; this is the single
// choke point that prevents UNC-path tricks, symlink escapes outside an
// allowed base directory, and oversized files from reaching a loader.
package pathgate

import (
	"os"
	"path/filepath"
	"strings"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
)

// Kind selects the default extension allow-list and size limit for a path.
type Kind string

const (
	KindConfig     Kind = "config"
	KindJSONRules  Kind = "jsonRules"
	KindPack       Kind = "pack"
)

// Options configures one validate call. Zero values fall back to the
// Kind's defaults via applyDefaults.
type Options struct {
	Kind              Kind
	AllowedBases      []string
	MaxSize           int64
	AllowedExtensions []string // lower-cased, dot-prefixed; empty means "any"
	MustExist         bool
}

func (o Options) applyDefaults() Options {
	if o.MaxSize == 0 {
		switch o.Kind {
		case KindConfig, KindJSONRules:
			o.MaxSize = 1 << 20 // 1 MiB
		case KindPack:
			o.MaxSize = 16 << 20 // 16 MiB
		default:
			o.MaxSize = 1 << 20
		}
	}
	if o.AllowedExtensions == nil {
		switch o.Kind {
		case KindConfig:
			o.AllowedExtensions = []string{".yaml", ".yml"}
		case KindJSONRules:
			o.AllowedExtensions = []string{".json"}
		case KindPack:
			o.AllowedExtensions = []string{} // any: detection is by magic bytes
		}
	}
	return o
}

// Result is the validated, canonical form of an accepted path.
type Result struct {
	CanonicalPath string
}

// Validate runs the Path Gate algorithm against path and returns the
// canonicalized path on success, or a *errors.SentriError with Code
// PATH_INVALID on any rejection. Every error message is a stable,
// non-path-disclosing string.
func Validate(path string, opts Options) (Result, error) {
	opts = opts.applyDefaults()

	if strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//") {
		return Result{}, rejectf("UNC paths are not allowed")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, rejectf("path could not be resolved")
	}

	if len(opts.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(abs))
		if !containsFold(opts.AllowedExtensions, ext) {
			return Result{}, rejectf("file extension is not permitted for this input kind")
		}
	}

	if opts.MustExist {
		if _, err := os.Stat(abs); err != nil {
			return Result{}, rejectf("file does not exist")
		}
	} else {
		if _, err := os.Stat(abs); err != nil {
			// Non-existent path with MustExist=false: the cleaned
			// absolute path is returned as is, with no symlinks resolved.
			return Result{CanonicalPath: filepath.Clean(abs)}, nil
		}
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return Result{}, rejectf("path could not be canonicalized")
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return Result{}, rejectf("file does not exist")
	}
	if !info.Mode().IsRegular() {
		return Result{}, rejectf("path does not reference a regular file")
	}
	if info.Size() > opts.MaxSize {
		return Result{}, rejectf("file exceeds the maximum allowed size")
	}

	if len(opts.AllowedBases) > 0 {
		ok := false
		for _, base := range opts.AllowedBases {
			canonBase, err := filepath.EvalSymlinks(base)
			if err != nil {
				continue
			}
			canonBase = filepath.Clean(canonBase)
			if isWithinBase(canonical, canonBase) {
				ok = true
				break
			}
		}
		if !ok {
			return Result{}, rejectf("path is outside the allowed base directories")
		}
	}

	return Result{CanonicalPath: canonical}, nil
}

// isWithinBase reports whether target equals base or is a proper
// descendant of it, using a separator-boundary check so "/home/userX"
// never matches base "/home/user".
func isWithinBase(target, base string) bool {
	if target == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

func containsFold(list []string, ext string) bool {
	for _, e := range list {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func rejectf(message string) *sferrors.SentriError {
	return sferrors.NewPathError(message, "", "", nil)
}
