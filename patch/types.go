// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch applies unified diffs to a working tree with escalating
// strategies, plus a manual new-file-extraction fallback.
//
// # Description
//
// The engine shells out to the version-control tooling for application,
// trying strict context matching first, then whitespace-lenient
// matching, then a three-way merge. The manual fallback reconstructs
// brand-new files directly from the diff text when the tooling cannot
// apply at all.
//
// # Thread Safety
//
// Engine is immutable after construction. Concurrent applies against
// the same workspace are the caller's responsibility to avoid; the
// single-writer contract lives at the orchestration layer.
package patch

// Method identifies which apply strategy produced a result.
type Method string

const (
	// MethodStrict is exact-context application.
	MethodStrict Method = "strict"

	// MethodLenient ignores whitespace differences and allows reduced
	// context matching.
	MethodLenient Method = "lenient"

	// MethodThreeWay merges using content ancestry.
	MethodThreeWay Method = "three_way"

	// MethodManual is the new-file-extraction fallback.
	MethodManual Method = "manual"

	// MethodFailed indicates no strategy succeeded.
	MethodFailed Method = "failed"
)

// String returns the string representation of the method.
func (m Method) String() string {
	return string(m)
}

// ApplyResult is the outcome of one apply attempt.
//
// # Description
//
// This is the unit of observability for every write attempt: callers
// log it, feed it to phase summaries, and decide on escalation from it.
type ApplyResult struct {
	// Success indicates the apply succeeded.
	Success bool `json:"success"`

	// Method is the strategy that succeeded, or MethodFailed.
	Method Method `json:"method"`

	// Message is a short human-readable outcome description.
	Message string `json:"message"`

	// FilesModified lists repo-relative paths touched by the apply.
	FilesModified []string `json:"files_modified,omitempty"`

	// ErrorOutput carries the last strategy's diagnostic output on
	// failure.
	ErrorOutput string `json:"error_output,omitempty"`
}

// Stats summarizes a diff's magnitude.
type Stats struct {
	// FilesAffected is the number of files the diff touches.
	FilesAffected int `json:"files_affected"`

	// LinesAdded counts "+" hunk body lines.
	LinesAdded int `json:"lines_added"`

	// LinesRemoved counts "-" hunk body lines.
	LinesRemoved int `json:"lines_removed"`
}
