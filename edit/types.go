// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package edit interprets line-indexed structured edit plans.
//
// # Description
//
// A structured edit plan is the alternative to diff-based patching for
// files too large or fragile for diff context matching. Operations are
// 1-indexed line mutations; per-file application runs bottom-to-top so
// that line numbers computed at plan construction time stay valid for
// every operation in the same file.
//
// # Thread Safety
//
// Plans and operations are not safe for concurrent modification. The
// Interpreter is safe for concurrent use across distinct plans as long
// as the plans do not target overlapping files.
package edit

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// OpKind identifies an edit operation type.
type OpKind string

const (
	// OpInsert inserts content before a 1-indexed line.
	OpInsert OpKind = "insert"

	// OpReplace replaces an inclusive 1-indexed line range.
	OpReplace OpKind = "replace"

	// OpDelete deletes an inclusive 1-indexed line range.
	OpDelete OpKind = "delete"

	// OpAppend appends content at end of file.
	OpAppend OpKind = "append"

	// OpPrepend inserts content at the start of the file.
	OpPrepend OpKind = "prepend"
)

// String returns the string representation of the kind.
func (k OpKind) String() string {
	return string(k)
}

// Operation is one atomic text mutation on one file.
//
// # Description
//
// Line bounds are validated against the file's current length at apply
// time, not at construction time: content may have been mutated by a
// prior operation in the same plan.
type Operation struct {
	// Kind is the operation type.
	Kind OpKind `json:"kind"`

	// FilePath is the repo-root-anchored relative path.
	FilePath string `json:"file_path"`

	// Line is the 1-indexed insertion point (Insert only).
	Line int `json:"line,omitempty"`

	// StartLine is the inclusive 1-indexed range start (Replace/Delete).
	StartLine int `json:"start_line,omitempty"`

	// EndLine is the inclusive 1-indexed range end (Replace/Delete).
	EndLine int `json:"end_line,omitempty"`

	// Content is the text to insert (Insert/Replace/Append/Prepend).
	Content string `json:"content,omitempty"`

	// ContextBefore is an optional sanity-check substring expected in
	// the three lines above StartLine. Never used as a search anchor.
	ContextBefore string `json:"context_before,omitempty"`

	// ContextAfter is an optional sanity-check substring expected in
	// the three lines below EndLine.
	ContextAfter string `json:"context_after,omitempty"`
}

// Validate checks per-operation field completeness and ordering.
func (o *Operation) Validate() error {
	if strings.TrimSpace(o.FilePath) == "" {
		return errors.New("file_path is required")
	}

	switch o.Kind {
	case OpInsert:
		if o.Line < 1 {
			return fmt.Errorf("insert requires line >= 1, got %d", o.Line)
		}
		if o.Content == "" {
			return errors.New("insert requires content")
		}
	case OpReplace:
		if o.StartLine < 1 {
			return fmt.Errorf("replace requires start_line >= 1, got %d", o.StartLine)
		}
		if o.EndLine < o.StartLine {
			return fmt.Errorf("replace range inverted: start_line %d > end_line %d", o.StartLine, o.EndLine)
		}
		if o.Content == "" {
			return errors.New("replace requires content; use delete to remove lines")
		}
	case OpDelete:
		if o.StartLine < 1 {
			return fmt.Errorf("delete requires start_line >= 1, got %d", o.StartLine)
		}
		if o.EndLine < o.StartLine {
			return fmt.Errorf("delete range inverted: start_line %d > end_line %d", o.StartLine, o.EndLine)
		}
	case OpAppend:
		if o.Content == "" {
			return errors.New("append requires content")
		}
	case OpPrepend:
		if o.Content == "" {
			return errors.New("prepend requires content")
		}
	default:
		return fmt.Errorf("unknown operation kind %q", o.Kind)
	}
	return nil
}

// isRanged reports whether the operation carries a line range that
// participates in overlap checking.
func (o *Operation) isRanged() bool {
	return o.Kind == OpReplace || o.Kind == OpDelete
}

// sortPos returns the position key used to order operations within one
// file. Prepend sorts before everything, Append after everything.
func (o *Operation) sortPos() int {
	switch o.Kind {
	case OpPrepend:
		return math.MinInt
	case OpAppend:
		return math.MaxInt
	case OpInsert:
		return o.Line
	default:
		return o.StartLine
	}
}

// Plan is an ordered sequence of operations plus a human-readable
// summary.
//
// # Description
//
// A plan is validated once and applied at most once: re-application is
// not idempotent because line numbers shift.
type Plan struct {
	// Summary describes the plan for humans.
	Summary string `json:"summary"`

	// Operations is the ordered operation list.
	Operations []Operation `json:"operations"`
}

// Validate checks every operation and rejects overlapping Replace/Delete
// ranges on the same file.
//
// # Description
//
// Overlap is checked pairwise before any operation is applied. Two
// ranged operations on one file overlap when their inclusive
// [start_line, end_line] ranges intersect; such a plan is ambiguous
// under bottom-to-top application and is rejected whole.
func (p *Plan) Validate() error {
	if len(p.Operations) == 0 {
		return errors.New("plan has no operations")
	}

	for i := range p.Operations {
		if err := p.Operations[i].Validate(); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i, p.Operations[i].FilePath, err)
		}
	}

	for i := range p.Operations {
		a := &p.Operations[i]
		if !a.isRanged() {
			continue
		}
		for j := i + 1; j < len(p.Operations); j++ {
			b := &p.Operations[j]
			if !b.isRanged() || a.FilePath != b.FilePath {
				continue
			}
			if a.StartLine <= b.EndLine && b.StartLine <= a.EndLine {
				return fmt.Errorf(
					"operations %d and %d overlap on %s: [%d,%d] vs [%d,%d]",
					i, j, a.FilePath, a.StartLine, a.EndLine, b.StartLine, b.EndLine,
				)
			}
		}
	}
	return nil
}

// Files returns the distinct file paths the plan touches, in first-seen
// order.
func (p *Plan) Files() []string {
	seen := make(map[string]bool, len(p.Operations))
	var files []string
	for i := range p.Operations {
		path := p.Operations[i].FilePath
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}
	return files
}

// OperationError records the first error for a failed operation.
type OperationError struct {
	// Index is the operation's position in the plan.
	Index int `json:"index"`

	// FilePath is the file the operation targeted.
	FilePath string `json:"file_path"`

	// Message is the failure description.
	Message string `json:"message"`
}

// Result tallies one plan application.
type Result struct {
	// Applied is the number of operations whose file was fully applied
	// and (outside dry runs) written.
	Applied int `json:"applied"`

	// Failed is the number of operations dropped with their file.
	Failed int `json:"failed"`

	// Errors carries the first error per failed operation group.
	Errors []OperationError `json:"errors,omitempty"`

	// FilesWritten lists files committed to disk (empty on dry runs).
	FilesWritten []string `json:"files_written,omitempty"`

	// DryRun echoes whether disk writes were skipped.
	DryRun bool `json:"dry_run"`
}

// Success reports whether every operation was applied.
func (r *Result) Success() bool {
	return r.Failed == 0
}
