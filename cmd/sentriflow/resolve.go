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
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/license"
	"github.com/kraklabs/sentriflow/internal/machineid"
	"github.com/kraklabs/sentriflow/internal/orchestrator"
	"github.com/kraklabs/sentriflow/internal/rules"
	"github.com/kraklabs/sentriflow/internal/ui"
)

// resolvedRuleView is the --json output shape for one resolved rule.
type resolvedRuleView struct {
	ID       string   `json:"id"`
	Selector string   `json:"selector,omitempty"`
	Vendor   []string `json:"vendor,omitempty"`
	Level    string   `json:"level"`
}

// resolveOutput is the top-level --json output shape for `resolve`.
type resolveOutput struct {
	ConfigPath     string             `json:"configPath,omitempty"`
	SkippedSources []string           `json:"skippedSources,omitempty"`
	Rules          []resolvedRuleView `json:"rules"`
}

func runResolve(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	var (
		packPaths    = fs.StringArray("pack", nil, "Path to a GRPX/GRX2/unencrypted pack file (repeatable)")
		jsonRules    = fs.StringArray("json-rules", nil, "Path to a JSON rule file (repeatable)")
		rulesFile    = fs.String("rules", "", "Path to a legacy JSON rules file")
		vendorID     = fs.String("vendor", "", "Restrict the resolved set to this vendor id")
		licenseFlag  = fs.String("license", "", "License key (falls back to SENTRIFLOW_LICENSE_KEY)")
		strict       = fs.Bool("strict", false, "Abort on the first pack-load failure instead of skipping it")
		configPath   = fs.String("config", "", "Explicit config file path (skips discovery)")
		disableRules = fs.StringArray("disable", nil, "Rule id to disable (repeatable)")
	)
	_ = fs.Parse(args)

	wd, err := os.Getwd()
	if err != nil {
		fatal(sferrors.NewInternalError("Cannot determine working directory", err.Error(), "", err), globals.JSON)
	}

	licenseKey, _ := license.Resolve(*licenseFlag, os.Getenv)

	cacheDir, err := defaultCacheDir()
	if err != nil {
		fatal(sferrors.NewInternalError("Cannot determine cache directory", err.Error(), "", err), globals.JSON)
	}
	machID, err := machineid.Resolve(cacheDir)
	if err != nil {
		fatal(sferrors.NewInternalError("Cannot determine machine id", err.Error(), "", err), globals.JSON)
	}

	sourceCount := len(*packPaths) + len(*jsonRules)
	var bar *progressbar.ProgressBar
	if sourceCount > 0 && !globals.Quiet {
		bar = progressbar.NewOptions(sourceCount,
			progressbar.OptionSetDescription("resolving rule packs"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	res, err := orchestrator.Resolve(orchestrator.Options{
		ConfigDir:          wd,
		ConfigPathOverride: *configPath,
		VendorID:           *vendorID,
		LicenseKey:         licenseKey,
		MachineID:          machID,
		Strict:             *strict,
		Now:                time.Now(),
		CLIRulesFile:       *rulesFile,
		CLIJSONRules:       *jsonRules,
		CLIPacks:           *packPaths,
		DisableIDs:         *disableRules,
		OnPackError: func(sourceKind, sourcePath string, loadErr error) {
			if !globals.Quiet {
				ui.Warningf("skipping %s %s: %s", sourceKind, sourcePath, sferrors.AsSentriError(loadErr).Message)
			}
		},
		OnSourceProcessed: func() {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if err != nil {
		fatal(err, globals.JSON)
	}

	if globals.JSON {
		printResolveJSON(res)
		return
	}
	printResolveHuman(res, globals)
}

func printResolveJSON(res orchestrator.Result) {
	out := resolveOutput{ConfigPath: res.ConfigPath, SkippedSources: res.SkippedSources}
	for _, r := range res.Rules {
		out.Rules = append(out.Rules, resolvedRuleView{ID: r.ID, Selector: r.Selector, Vendor: r.Vendor, Level: string(r.Metadata.Level)})
	}
	_ = json.NewEncoder(os.Stdout).Encode(out)
}

func printResolveHuman(res orchestrator.Result, globals GlobalFlags) {
	ui.Header("Resolved Rule Set")
	if res.ConfigPath != "" {
		fmt.Printf("%s %s\n", ui.Label("Config File:"), ui.DimText(res.ConfigPath))
	}
	fmt.Printf("%s %s\n", ui.Label("Rules:"), ui.CountText(len(res.Rules)))
	if len(res.SkippedSources) > 0 {
		ui.SubHeader("Skipped Sources:")
		for _, s := range res.SkippedSources {
			fmt.Printf("  %s\n", ui.DimText(s))
		}
	}
	if globals.Quiet {
		return
	}
	for _, r := range res.Rules {
		levelColor := ui.Dim
		switch r.Metadata.Level {
		case rules.LevelError:
			levelColor = ui.Red
		case rules.LevelWarning:
			levelColor = ui.Yellow
		}
		_, _ = levelColor.Printf("  [%s] ", r.Metadata.Level)
		fmt.Println(r.ID)
	}
}

func defaultCacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sentriflow", "cache"), nil
}
