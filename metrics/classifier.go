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
	"path"
	"strings"
)

// ChangeType classifies the expected magnitude of a phase's change.
type ChangeType string

const (
	// ChangeSmallFix indicates a contained, low-risk change.
	ChangeSmallFix ChangeType = "small_fix"

	// ChangeLargeRefactor indicates a broad or structurally risky change.
	ChangeLargeRefactor ChangeType = "large_refactor"
)

// String returns the string representation of the change type.
func (t ChangeType) String() string {
	return string(t)
}

// PhaseSpec carries the phase signals the classifier consumes.
type PhaseSpec struct {
	// Complexity is the declared phase complexity: low, medium, high.
	Complexity string

	// AcceptanceCriteria lists the phase's acceptance criteria.
	AcceptanceCriteria []string

	// ChangeSize is an explicit override ("large" forces large_refactor).
	ChangeSize string

	// AllowSymbolRemoval forces large_refactor when set: a phase that
	// expects symbol removal is never a small fix.
	AllowSymbolRemoval bool
}

// lockfileNames are generated dependency lockfiles. Any edit to one is
// treated as a large refactor regardless of other signals.
var lockfileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"poetry.lock":       true,
	"Pipfile.lock":      true,
	"Cargo.lock":        true,
	"go.sum":            true,
}

// manifestNames are project manifests whose edits ripple widely.
var manifestNames = map[string]bool{
	"package.json":     true,
	"pyproject.toml":   true,
	"setup.py":         true,
	"requirements.txt": true,
	"Cargo.toml":       true,
	"go.mod":           true,
}

// ChangeClassifier decides small_fix vs large_refactor for a phase.
type ChangeClassifier struct{}

// NewChangeClassifier creates a change classifier.
func NewChangeClassifier() *ChangeClassifier {
	return &ChangeClassifier{}
}

// Classify determines the change type for a phase.
//
// # Description
//
// Decision order:
//
//  1. Scope-path overrides: lockfiles, manifests, anything under a
//     packs/ data directory, or any YAML file forces large_refactor.
//  2. Explicit phase flags (ChangeSize, AllowSymbolRemoval) force
//     large_refactor.
//  3. Otherwise low complexity, or medium complexity with at most three
//     acceptance criteria, is a small_fix; everything else is a
//     large_refactor.
//
// # Inputs
//
//   - phase: Phase signals.
//   - scopePaths: Paths the phase is scoped to.
//
// # Outputs
//
//   - ChangeType: The classification.
func (c *ChangeClassifier) Classify(phase PhaseSpec, scopePaths []string) ChangeType {
	for _, p := range scopePaths {
		if isHighRiskPath(p) {
			return ChangeLargeRefactor
		}
	}

	if strings.EqualFold(phase.ChangeSize, "large") || phase.AllowSymbolRemoval {
		return ChangeLargeRefactor
	}

	complexity := strings.ToLower(phase.Complexity)
	if complexity == "low" {
		return ChangeSmallFix
	}
	if complexity == "medium" && len(phase.AcceptanceCriteria) <= 3 {
		return ChangeSmallFix
	}
	return ChangeLargeRefactor
}

// ChurnThreshold maps a change type to its advisory churn gate. The
// gate itself is enforced by the quality layer, not here.
func (c *ChangeClassifier) ChurnThreshold(changeType ChangeType) float64 {
	if changeType == ChangeLargeRefactor {
		return 80.0
	}
	return 30.0
}

// isHighRiskPath reports whether a scope path forces large_refactor.
func isHighRiskPath(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	base := path.Base(p)

	if lockfileNames[base] || manifestNames[base] {
		return true
	}

	ext := strings.ToLower(path.Ext(base))
	if ext == ".yaml" || ext == ".yml" {
		return true
	}

	for _, segment := range strings.Split(p, "/") {
		if segment == "packs" {
			return true
		}
	}
	return false
}
