// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scope validates candidate file paths against the active change
// scope and the protected-path set.
//
// # Description
//
// A path is writable only if it is not covered by any protected prefix
// AND it falls inside the allowed scope (an empty scope means
// unrestricted). Protection always wins: a path that is both in scope
// and protected is rejected.
//
// # Thread Safety
//
// Guard is immutable after construction and safe for concurrent use.
package scope

import (
	"path"
	"strings"
)

// ViolationReason explains why a path was rejected.
type ViolationReason string

const (
	// ReasonOutsideScope indicates the path is not covered by any scope entry.
	ReasonOutsideScope ViolationReason = "outside_scope"

	// ReasonProtected indicates the path is covered by a protected entry.
	ReasonProtected ViolationReason = "protected"
)

// String returns the string representation of the reason.
func (r ViolationReason) String() string {
	return string(r)
}

// Violation records a single rejected path and why it was rejected.
type Violation struct {
	// Path is the candidate path that failed validation.
	Path string `json:"path"`

	// Reason is why the path was rejected.
	Reason ViolationReason `json:"reason"`
}

// Decision is the outcome of validating a candidate path set.
//
// # Description
//
// One Decision covers the whole candidate set. Callers treat any
// violation as a hard stop; an otherwise-valid change must not be
// partially applied.
type Decision struct {
	// OK is true if every candidate path passed.
	OK bool `json:"ok"`

	// Violations lists the paths that failed, with reasons.
	Violations []Violation `json:"violations,omitempty"`
}

// HasProtected returns true if any violation was a protected-path hit.
func (d Decision) HasProtected() bool {
	for _, v := range d.Violations {
		if v.Reason == ReasonProtected {
			return true
		}
	}
	return false
}

// DefaultProtectedPaths returns the prefixes that automated applies may
// never touch: version-control metadata and the platform's own
// implementation trees.
func DefaultProtectedPaths() []string {
	return []string{
		".git",
		".autopack",
		"src/autopack",
	}
}

// Guard validates candidate paths against scope and protected sets.
type Guard struct {
	scopePaths     []string
	protectedPaths []string
}

// NewGuard creates a guard for the given scope and protected path sets.
//
// # Inputs
//
//   - scopePaths: Explicitly allowed prefixes or files. Empty means
//     unrestricted.
//   - protectedPaths: Always-denied prefixes or files. Nil falls back to
//     DefaultProtectedPaths.
//
// # Outputs
//
//   - *Guard: Ready-to-use guard.
func NewGuard(scopePaths, protectedPaths []string) *Guard {
	if protectedPaths == nil {
		protectedPaths = DefaultProtectedPaths()
	}
	return &Guard{
		scopePaths:     normalizeAll(scopePaths),
		protectedPaths: normalizeAll(protectedPaths),
	}
}

// Check validates a set of candidate relative paths.
//
// # Description
//
// Protected-path rejection is checked before scope membership and
// short-circuits with its own reason, so a path that is simultaneously
// in scope and protected is still rejected as protected.
//
// # Inputs
//
//   - paths: Candidate repo-relative paths.
//
// # Outputs
//
//   - Decision: OK plus per-path violations for the whole set.
func (g *Guard) Check(paths []string) Decision {
	decision := Decision{OK: true}

	for _, p := range paths {
		normalized := normalize(p)

		if g.isProtected(normalized) {
			decision.OK = false
			decision.Violations = append(decision.Violations, Violation{
				Path:   p,
				Reason: ReasonProtected,
			})
			continue
		}

		if !g.inScope(normalized) {
			decision.OK = false
			decision.Violations = append(decision.Violations, Violation{
				Path:   p,
				Reason: ReasonOutsideScope,
			})
		}
	}

	return decision
}

// isProtected reports whether the path is covered by a protected entry.
func (g *Guard) isProtected(p string) bool {
	for _, entry := range g.protectedPaths {
		if covers(entry, p) {
			return true
		}
	}
	return false
}

// inScope reports whether the path is covered by the scope. An empty
// scope means unrestricted.
func (g *Guard) inScope(p string) bool {
	if len(g.scopePaths) == 0 {
		return true
	}
	for _, entry := range g.scopePaths {
		if covers(entry, p) {
			return true
		}
	}
	return false
}

// covers reports whether entry equals p or is a directory prefix of p.
func covers(entry, p string) bool {
	if entry == "" {
		return false
	}
	return p == entry || strings.HasPrefix(p, entry+"/")
}

// normalize canonicalizes separators and strips trailing slashes so
// Windows-style and POSIX-style paths compare identically.
func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." || p == "/" {
		return ""
	}
	return strings.Trim(p, "/")
}

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if n := normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
