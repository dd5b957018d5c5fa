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

package rules

import "fmt"

var errPackNameEmpty = fmt.Errorf("rule pack name must not be empty")

func newInvalidRuleIDError(id string) error {
	return fmt.Errorf("rule id %q does not match the required pattern", id)
}

func newDuplicateRuleIDError(id string) error {
	return fmt.Errorf("duplicate rule id %q within pack", id)
}

var errNotRequiresOneCondition = fmt.Errorf("not check requires exactly one condition")

func newUnknownCheckKindError(kind string) error {
	return fmt.Errorf("unknown check kind %q", kind)
}

func newUnknownHelperError(name string) error {
	return fmt.Errorf("unknown helper %q", name)
}
