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

// Package license parses SentriFlow license keys. Two shapes coexist: an
// offline JWT (three dot-separated base64url segments) and a cloud key
// (XXXX-XXXX-XXXX-XXXX of base36 characters, whose activation happens
// outside this core). The JWT's signature is never verified locally — the
// pack's own AEAD envelope provides the cryptographic integrity this
// system actually relies on (see package packs); the claims are parsed
// only for display and pack-source selection.
package license

import (
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
)

// Tier is a license entitlement tier.
type Tier string

const (
	TierCommunity    Tier = "community"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// Claims is the parsed payload of an offline JWT license key.
type Claims struct {
	Subject   string
	Tier      Tier
	Feeds     []string
	ExpiresAt time.Time
	IssuedAt  time.Time
	APIBase   string
	MachineID string // optional machine-binding claim ("mid")
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Tier  string   `json:"tier"`
	Feeds []string `json:"feeds"`
	API   string   `json:"api"`
	MID   string   `json:"mid,omitempty"`
}

var cloudKeyPattern = regexp.MustCompile(`^[0-9A-Z]{4}-[0-9A-Z]{4}-[0-9A-Z]{4}-[0-9A-Z]{4}$`)

// Kind identifies which of the two license key shapes a string matches.
type Kind string

const (
	KindOfflineJWT Kind = "offline-jwt"
	KindCloudKey   Kind = "cloud-key"
	KindUnknown    Kind = "unknown"
)

// Classify reports which shape key matches.
func Classify(key string) Kind {
	if cloudKeyPattern.MatchString(strings.ToUpper(key)) {
		return KindCloudKey
	}
	if strings.Count(key, ".") == 2 {
		return KindOfflineJWT
	}
	return KindUnknown
}

// ParseOfflineJWT decodes (without verifying) the payload of an offline
// JWT license key. Signature verification is intentionally skipped per
// SentriFlow's trust model: a pack is trusted because only the holder of
// the license key that produced it could unwrap it, not because of a
// client-side signature check a modified binary could bypass anyway.
func ParseOfflineJWT(key string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	var claims jwtClaims
	if _, _, err := parser.ParseUnverified(key, &claims); err != nil {
		return nil, sferrors.NewLicenseError(sferrors.LicenseInvalid,
			"License key could not be parsed", err.Error(),
			"Verify the license key was copied correctly", err)
	}

	c := &Claims{
		Subject:   claims.Subject,
		Tier:      Tier(claims.Tier),
		Feeds:     claims.Feeds,
		APIBase:   claims.API,
		MachineID: claims.MID,
	}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		c.IssuedAt = claims.IssuedAt.Time
	}
	return c, nil
}

// IsExpired reports whether the license's claimed expiry has passed.
func (c *Claims) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// HasFeed reports whether the license entitles feed.
func (c *Claims) HasFeed(feed string) bool {
	for _, f := range c.Feeds {
		if f == feed {
			return true
		}
	}
	return false
}

// Resolve loads the license key from the supplied CLI value, falling back
// to SENTRIFLOW_LICENSE_KEY per §6.5 when empty.
func Resolve(cliValue string, getenv func(string) string) (string, error) {
	if cliValue != "" {
		return cliValue, nil
	}
	if v := getenv("SENTRIFLOW_LICENSE_KEY"); v != "" {
		return v, nil
	}
	return "", sferrors.NewLicenseError(sferrors.LicenseMissing,
		"No license key configured", "Neither --license nor SENTRIFLOW_LICENSE_KEY was set",
		"Set the SENTRIFLOW_LICENSE_KEY environment variable or pass --license", nil)
}
