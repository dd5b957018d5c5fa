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

// Package machineid resolves a stable per-host identifier used to bind
// non-portable GRX2 packs to a machine. Per spec §6.6: an OS-stable
// identifier is preferred; if unavailable, a persistent random identifier
// is generated once and reused.
package machineid

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// osStableIDPaths are checked in order for a pre-existing, OS-assigned
// machine identifier. Only the Linux machine-id files below are probed;
// other platforms fall through to the persisted-uuid path, since reading
// platform-specific IOKit/registry identifiers needs cgo or syscalls this
// core doesn't otherwise require.
var osStableIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// Resolve returns a stable machine id, preferring an OS-provided one and
// otherwise reading (or creating) a persisted random id under cacheDir.
func Resolve(cacheDir string) (string, error) {
	for _, p := range osStableIDPaths {
		if id, ok := readOSStableID(p); ok {
			return id, nil
		}
	}
	return persistedID(cacheDir)
}

func readOSStableID(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", false
	}
	return id, true
}

const persistedIDFile = "machine-id"

func persistedID(cacheDir string) (string, error) {
	path := filepath.Join(cacheDir, persistedIDFile)

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return "", err
	}
	return id, nil
}
