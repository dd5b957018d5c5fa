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

// Package logging provides SentriFlow's structured logger.
//
// DEBUG (any non-empty value) raises the level from Warn to Debug. Per
// spec §6.5, debug logging must never be enabled in production: detail
// fields on SentriError values, pack file names, and raw decryption
// failure reasons are only emitted at Debug level.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

var (
	once    sync.Once
	logger  *slog.Logger
	level   = new(slog.LevelVar)
	handler slog.Handler
)

func initLogger() {
	level.Set(slog.LevelWarn)
	if os.Getenv("DEBUG") != "" {
		level.Set(slog.LevelDebug)
	}
	handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
}

// Default returns the process-wide SentriFlow logger.
func Default() *slog.Logger {
	once.Do(initLogger)
	return logger
}

// Debugf logs a debug-level message with printf-style formatting collapsed
// into a single "msg" attribute, matching the teacher's logDebug helper but
// backed by structured slog instead of fmt.Fprintf to stderr.
func Debugf(format string, args ...any) {
	Default().Debug(sprintf(format, args...))
}

// Infof logs an info-level message.
func Infof(format string, args ...any) {
	Default().Info(sprintf(format, args...))
}

// Warnf logs a warn-level message (visible without DEBUG set).
func Warnf(format string, args ...any) {
	Default().Warn(sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
