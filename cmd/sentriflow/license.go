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

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/license"
	"github.com/kraklabs/sentriflow/internal/ui"
)

type licenseView struct {
	Kind      string   `json:"kind"`
	Subject   string   `json:"subject,omitempty"`
	Tier      string   `json:"tier,omitempty"`
	Feeds     []string `json:"feeds,omitempty"`
	ExpiresAt string   `json:"expiresAt,omitempty"`
	Expired   bool     `json:"expired,omitempty"`
}

func runLicense(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("license", flag.ExitOnError)
	_ = fs.Parse(args)

	rest := fs.Args()
	key := os.Getenv("SENTRIFLOW_LICENSE_KEY")
	if len(rest) > 0 {
		key = rest[0]
	}
	if key == "" {
		fatal(sferrors.NewLicenseError(sferrors.LicenseMissing, "No license key configured",
			"Neither an argument nor SENTRIFLOW_LICENSE_KEY was set",
			"Pass the key as an argument or set SENTRIFLOW_LICENSE_KEY", nil), globals.JSON)
	}

	kind := license.Classify(key)
	view := licenseView{Kind: string(kind)}

	if kind == license.KindOfflineJWT {
		claims, err := license.ParseOfflineJWT(key)
		if err != nil {
			fatal(err, globals.JSON)
		}
		view.Subject = claims.Subject
		view.Tier = string(claims.Tier)
		view.Feeds = claims.Feeds
		view.ExpiresAt = claims.ExpiresAt.Format(time.RFC3339)
		view.Expired = claims.IsExpired(time.Now())
	}

	if globals.JSON {
		_ = json.NewEncoder(os.Stdout).Encode(view)
		return
	}

	ui.Header("License Key")
	fmt.Printf("%s %s\n", ui.Label("Kind:"), view.Kind)
	if kind == license.KindOfflineJWT {
		fmt.Printf("%s %s\n", ui.Label("Subject:"), view.Subject)
		fmt.Printf("%s %s\n", ui.Label("Tier:"), view.Tier)
		fmt.Printf("%s %v\n", ui.Label("Feeds:"), view.Feeds)
		fmt.Printf("%s %s\n", ui.Label("Expires:"), ui.DimText(view.ExpiresAt))
		if view.Expired {
			ui.Warningf("This license key has expired.")
		}
	}
}
