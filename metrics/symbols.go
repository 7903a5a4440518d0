// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// topLevelSymbolPattern matches non-indented function and class
// declarations. Line-anchored on purpose: indented (nested) definitions
// are not tracked.
var topLevelSymbolPattern = regexp.MustCompile(`^(?:async\s+)?(?:def|class)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// SymbolValidator detects top-level symbols that a change removes.
//
// # Description
//
// This is a heuristic drift detector, not a semantic analyzer. A symbol
// that was renamed rather than removed still shows up as missing; that
// false negative is acceptable for its purpose of flagging accidental
// deletions.
type SymbolValidator struct{}

// NewSymbolValidator creates a symbol validator.
func NewSymbolValidator() *SymbolValidator {
	return &SymbolValidator{}
}

// Validate returns the top-level symbols present in old content but
// absent from new content.
//
// # Inputs
//
//   - oldContent: Original content.
//   - newContent: Proposed content.
//   - filePath: Used to restrict the check to Python-family sources;
//     other files always yield nil.
//
// # Outputs
//
//   - []string: Sorted missing symbol names, nil if none.
func (v *SymbolValidator) Validate(oldContent, newContent, filePath string) []string {
	if !isPythonSource(filePath) {
		return nil
	}

	oldSymbols := extractTopLevelSymbols(oldContent)
	newSymbols := extractTopLevelSymbols(newContent)

	var missing []string
	for name := range oldSymbols {
		if !newSymbols[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// extractTopLevelSymbols collects non-indented def/class names.
func extractTopLevelSymbols(content string) map[string]bool {
	symbols := make(map[string]bool)
	for _, line := range strings.Split(content, "\n") {
		if m := topLevelSymbolPattern.FindStringSubmatch(line); m != nil {
			symbols[m[1]] = true
		}
	}
	return symbols
}

// isPythonSource reports whether the path is in the language family the
// symbol heuristic understands.
func isPythonSource(filePath string) bool {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".py", ".pyi":
		return true
	default:
		return false
	}
}
