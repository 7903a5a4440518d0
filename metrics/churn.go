// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics computes change-magnitude signals over (old, new)
// content pairs: churn percentage, removed-symbol drift, and
// small-fix/large-refactor classification.
//
// # Thread Safety
//
// All types in this package are stateless and safe for concurrent use.
package metrics

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultChurnThreshold is the boundary above which a change counts as
// high churn when the caller does not supply one.
const DefaultChurnThreshold = 50.0

// ChurnCalculator measures the fraction of a file's lines altered by a
// change.
type ChurnCalculator struct{}

// NewChurnCalculator creates a churn calculator.
func NewChurnCalculator() *ChurnCalculator {
	return &ChurnCalculator{}
}

// Calculate returns the churn percentage between old and new content.
//
// # Description
//
// Runs a sequence alignment over the two line lists and accumulates,
// per alignment operation: max(removed, inserted) for replacements,
// removed for deletions, inserted for insertions. The percentage is the
// accumulated count over max(len(oldLines), 1) * 100. Entirely new
// content (empty old, non-empty new) is 100% churn by definition.
//
// # Inputs
//
//   - oldContent: Original content.
//   - newContent: Proposed content.
//
// # Outputs
//
//   - float64: Churn percentage. May exceed 100 when a change adds more
//     lines than the original had.
func (c *ChurnCalculator) Calculate(oldContent, newContent string) float64 {
	if oldContent == "" {
		if newContent == "" {
			return 0
		}
		return 100
	}

	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	changed := 0
	for _, op := range difflib.NewMatcher(oldLines, newLines).GetOpCodes() {
		removed := op.I2 - op.I1
		inserted := op.J2 - op.J1
		switch op.Tag {
		case 'r':
			changed += max(removed, inserted)
		case 'd':
			changed += removed
		case 'i':
			changed += inserted
		}
	}

	denom := len(oldLines)
	if denom < 1 {
		denom = 1
	}
	return float64(changed) / float64(denom) * 100
}

// IsHighChurn reports whether the change exceeds the threshold.
// A non-positive threshold falls back to DefaultChurnThreshold.
func (c *ChurnCalculator) IsHighChurn(oldContent, newContent string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultChurnThreshold
	}
	return c.Calculate(oldContent, newContent) > threshold
}

// splitLines splits content into lines without trailing-newline
// artifacts: "a\nb\n" is two lines, not three.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
