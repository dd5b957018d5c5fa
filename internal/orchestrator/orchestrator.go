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

// Package orchestrator is the Config & Resolve Orchestrator (spec §4.8):
// it locates the config file, builds the full priority-ordered list of
// synthetic packs described in spec §4.6 step 2, runs each file-based
// source through the Path Gate, the Format Detector, and the matching
// loader, and finally hands everything to the resolver. Strict mode turns
// the first pack-load failure into a fatal error; lenient mode (the
// default) logs it and keeps going.
package orchestrator

import (
	"os"
	"time"

	"github.com/kraklabs/sentriflow/internal/config"
	"github.com/kraklabs/sentriflow/internal/defaults"
	sferrors "github.com/kraklabs/sentriflow/internal/errors"
	"github.com/kraklabs/sentriflow/internal/format"
	"github.com/kraklabs/sentriflow/internal/metrics"
	"github.com/kraklabs/sentriflow/internal/packs"
	"github.com/kraklabs/sentriflow/internal/pathgate"
	"github.com/kraklabs/sentriflow/internal/resolver"
	"github.com/kraklabs/sentriflow/internal/rules"
)

// Options parameterizes one end-to-end resolve (spec §4.6/§4.8).
type Options struct {
	// ConfigDir is where config discovery starts (config.Find walks up
	// from here). Ignored when ConfigPathOverride is set.
	ConfigDir string
	// ConfigPathOverride, when non-empty, is used as-is instead of
	// searching for a config file.
	ConfigPathOverride string

	VendorID   string
	LicenseKey string
	MachineID  string
	Strict     bool
	Now        time.Time

	// GetActivationCount answers the in-pack ACTIVATION_LIMIT check
	// (packs.ValidateOptions.GetActivationCount). Nil means "no limit".
	GetActivationCount func() int

	// AllowedBases restricts every file-based source to these directories
	// (pathgate.Options.AllowedBases); empty means unrestricted.
	AllowedBases []string

	// CLIRulesFile is the legacy --rules file (spec §4.6 step 2: "CLI
	// --rules file: priority 50"), a JSON rule file.
	CLIRulesFile string
	// CLIJSONRules are --json-rules file paths, each a JSON rule file
	// (priority 100 + index).
	CLIJSONRules []string
	// CLIPacks are --pack file paths, each format-detected and loaded by
	// the matching loader (priority = format base + index).
	CLIPacks []string
	// DisableIDs are legacy rule ids disabled directly from the CLI, in
	// addition to whatever the config file and packs disable.
	DisableIDs []string

	// OnPackError is invoked once per lenient-mode pack-load failure with
	// the source kind, the source path, and the load error itself (whose
	// Detail may contain a path or license material).
	OnPackError func(sourceKind, sourcePath string, err error)

	// OnSourceProcessed, if set, is called once after every CLI-supplied
	// pack or JSON-rules source has been attempted (success, lenient
	// skip, or strict abort), letting a caller drive a progress bar over
	// len(CLIPacks)+len(CLIJSONRules) without the orchestrator depending
	// on any particular rendering library itself.
	OnSourceProcessed func()
}

// Result is the outcome of one resolve.
type Result struct {
	ConfigPath string
	Rules      []rules.Rule
	// SkippedSources lists the sources that failed to load in lenient
	// mode; empty in strict mode (a strict failure instead returns an
	// error from Resolve).
	SkippedSources []string
}

// Resolve runs the full Config & Resolve Orchestrator algorithm.
func Resolve(opts Options) (Result, error) {
	cfgPath := opts.ConfigPathOverride
	if cfgPath == "" {
		found, err := config.Find(opts.ConfigDir)
		if err != nil {
			return Result{}, err
		}
		cfgPath = found
	}

	var cfgFile config.File
	if cfgPath != "" {
		if _, err := pathgate.Validate(cfgPath, pathgate.Options{Kind: pathgate.KindConfig, AllowedBases: opts.AllowedBases, MustExist: true}); err != nil {
			return Result{}, err
		}
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return Result{}, err
		}
		cfgFile = loaded
	}

	var defaultRules []rules.Rule
	if cfgFile.IncludesDefaults() {
		defaultRules = defaults.Rules()
	}

	b := &builder{opts: opts, result: Result{ConfigPath: cfgPath}}

	if len(cfgFile.Rules) > 0 {
		compiled, err := config.CompileRules(cfgFile.Rules)
		if err != nil {
			return Result{}, sferrors.NewConfigError("Invalid configuration format", err.Error(), "fix the rules[] entries in the config file", err)
		}
		b.addSynthetic("config-rules", compiled, 50)
	}

	if opts.CLIRulesFile != "" {
		if err := b.loadJSONRulesFile("cli-rules", opts.CLIRulesFile, 50); err != nil {
			return Result{}, err
		}
	}

	for _, path := range cfgFile.JSONRules {
		if err := b.loadJSONRulesFile("config-json-rules", path, 75); err != nil {
			return Result{}, err
		}
	}

	for i, path := range opts.CLIJSONRules {
		err := b.loadJSONRulesFile("cli-json-rules", path, 100+i)
		b.notifyProcessed()
		if err != nil {
			return Result{}, err
		}
	}

	for i, path := range opts.CLIPacks {
		err := b.loadPack(path, i)
		b.notifyProcessed()
		if err != nil {
			return Result{}, err
		}
	}

	for _, ref := range cfgFile.RulePacks {
		if err := b.loadPackAtPriority("config-pack", ref.Path, ref.Priority); err != nil {
			return Result{}, err
		}
	}

	disableIDs := append(append([]string{}, cfgFile.Disable...), opts.DisableIDs...)

	resolved := resolver.Resolve(defaultRules, b.packs, resolver.Options{VendorID: opts.VendorID}, disableIDs)
	metrics.ResolveRunsTotal.WithLabelValues("ok").Inc()
	metrics.ResolvedRuleCount.Observe(float64(len(resolved)))

	b.result.Rules = resolved
	return b.result, nil
}

// builder accumulates synthetic packs across every source kind, sharing
// the error/skip handling rules §4.6/§8 scenario 5 requires. It exists so
// Resolve's per-source loop bodies stay uniform in strict vs lenient mode.
type builder struct {
	opts   Options
	packs  []rules.RulePack
	result Result
}

func (b *builder) notifyProcessed() {
	if b.opts.OnSourceProcessed != nil {
		b.opts.OnSourceProcessed()
	}
}

func (b *builder) addSynthetic(name string, compiled []rules.Rule, priority int) {
	b.packs = append(b.packs, rules.RulePack{Name: name, Priority: priority, Rules: compiled})
}

func (b *builder) loadJSONRulesFile(sourceKind, path string, priority int) error {
	res, err := pathgate.Validate(path, pathgate.Options{Kind: pathgate.KindJSONRules, AllowedBases: b.opts.AllowedBases, MustExist: true})
	if err != nil {
		return b.handleFailure(sourceKind, path, err)
	}
	data, err := os.ReadFile(res.CanonicalPath) //nolint:gosec // canonical path already confined and size-checked by the Path Gate
	if err != nil {
		return b.handleFailure(sourceKind, path, sferrors.NewPathError("file could not be read", err.Error(), "", err))
	}
	pack, err := packs.LoadJSONRules(data, sourceKind, priority)
	if err != nil {
		metrics.PackLoadsTotal.WithLabelValues("unencrypted", "error").Inc()
		return b.handleFailure(sourceKind, path, err)
	}
	metrics.PackLoadsTotal.WithLabelValues("unencrypted", "ok").Inc()
	b.packs = append(b.packs, pack)
	return nil
}

func (b *builder) loadPack(path string, index int) error {
	res, err := pathgate.Validate(path, pathgate.Options{Kind: pathgate.KindPack, AllowedBases: b.opts.AllowedBases, MustExist: true})
	if err != nil {
		return b.handleFailure("cli-pack", path, err)
	}
	kind, err := format.Detect(res.CanonicalPath)
	if err != nil {
		return b.handleFailure("cli-pack", path, sferrors.NewFormatError("file could not be classified", err.Error(), "", err))
	}
	return b.load(kind, "cli-pack", path, res.CanonicalPath, kind.Priority()+index)
}

func (b *builder) loadPackAtPriority(sourceKind, path string, priority int) error {
	res, err := pathgate.Validate(path, pathgate.Options{Kind: pathgate.KindPack, AllowedBases: b.opts.AllowedBases, MustExist: true})
	if err != nil {
		return b.handleFailure(sourceKind, path, err)
	}
	kind, err := format.Detect(res.CanonicalPath)
	if err != nil {
		return b.handleFailure(sourceKind, path, sferrors.NewFormatError("file could not be classified", err.Error(), "", err))
	}
	return b.load(kind, sourceKind, path, res.CanonicalPath, priority)
}

func (b *builder) load(kind format.Kind, sourceKind, originalPath, canonicalPath string, priority int) error {
	data, err := os.ReadFile(canonicalPath) //nolint:gosec // canonical path already confined and size-checked by the Path Gate
	if err != nil {
		return b.handleFailure(sourceKind, originalPath, sferrors.NewPathError("file could not be read", err.Error(), "", err))
	}

	validateOpts := packs.ValidateOptions{MachineID: b.opts.MachineID, GetActivationCount: b.opts.GetActivationCount, Now: b.opts.Now}

	var loaded packs.LoadedPack
	switch kind {
	case format.GRPX:
		loaded, err = packs.LoadGRPX(data, b.opts.LicenseKey, validateOpts)
	case format.GRX2:
		loaded, err = packs.LoadGRX2(data, b.opts.LicenseKey, b.opts.MachineID, validateOpts)
	default:
		pack, jerr := packs.LoadJSONRules(data, sourceKind, priority)
		if jerr != nil {
			metrics.PackLoadsTotal.WithLabelValues(string(kind), "error").Inc()
			return b.handleFailure(sourceKind, originalPath, jerr)
		}
		metrics.PackLoadsTotal.WithLabelValues(string(kind), "ok").Inc()
		b.packs = append(b.packs, pack)
		return nil
	}

	if err != nil {
		metrics.PackLoadsTotal.WithLabelValues(string(kind), "error").Inc()
		return b.handleFailure(sourceKind, originalPath, err)
	}
	metrics.PackLoadsTotal.WithLabelValues(string(kind), "ok").Inc()
	loaded.Pack.Priority = priority
	b.packs = append(b.packs, loaded.Pack)
	return nil
}

// handleFailure applies strict/lenient policy (spec §8 scenario 5). In
// strict mode it returns err so Resolve aborts immediately; in lenient
// mode it records the source as skipped, calls OnPackError, and returns
// nil so the caller's loop continues to the next source.
func (b *builder) handleFailure(sourceKind, path string, err error) error {
	metrics.ResolveRunsTotal.WithLabelValues("pack_error").Inc()
	if b.opts.Strict {
		return err
	}
	b.result.SkippedSources = append(b.result.SkippedSources, path)
	if b.opts.OnPackError != nil {
		b.opts.OnPackError(sourceKind, path, err)
	}
	return nil
}
