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

// Package ui centralizes terminal color output for the sentriflow CLI.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Cyan   = color.New(color.FgCyan)
	Dim    = color.New(color.Faint)
)

// InitColors disables color output when noColor is set, NO_COLOR is set,
// or stdout is not a terminal.
func InitColors(noColor bool) {
	if noColor || os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// Header prints a bold section title.
func Header(title string) {
	fmt.Println()
	_, _ = color.New(color.Bold).Println(title)
}

// SubHeader prints a dimmer, second-level title.
func SubHeader(title string) {
	_, _ = color.New(color.Bold, color.Faint).Println(title)
}

// Label renders a field label in bold for `Label: value` lines.
func Label(text string) string {
	return color.New(color.Bold).Sprint(text)
}

// DimText renders text in a faint style for secondary information.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText renders an integer count, cyan when non-zero and dim when zero.
func CountText(n int) string {
	if n == 0 {
		return DimText("0")
	}
	return Cyan.Sprint(n)
}

// Info prints an informational line prefixed with a cyan marker.
func Info(msg string) {
	_, _ = Cyan.Print("info: ")
	fmt.Println(msg)
}

// Infof is Info with fmt.Sprintf formatting.
func Infof(format string, args ...interface{}) { Info(fmt.Sprintf(format, args...)) }

// Successf prints a green success line.
func Successf(format string, args ...interface{}) {
	_, _ = Green.Print("✓ ")
	fmt.Printf(format+"\n", args...)
}

// Warningf prints a yellow warning line to stderr.
func Warningf(format string, args ...interface{}) {
	_, _ = Yellow.Fprint(os.Stderr, "warning: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
