// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diff synthesizes git-compatible unified diffs from (old, new)
// content pairs.
//
// # Description
//
// This package builds the diff text that the patch engine later applies
// with the version-control tooling. Classification (new, deleted,
// modified) drives the header lines; hunk bodies use a three-line
// context window.
//
// # Thread Safety
//
// Synthesizer is immutable after construction and safe for concurrent use.
package diff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// contextLines is the unified diff context window size.
const contextLines = 3

// Result is the outcome of synthesizing one file's diff.
//
// # Description
//
// Result is derived output and never mutated after creation.
type Result struct {
	// DiffText is the git-compatible unified diff. Empty when old and
	// new content are identical.
	DiffText string `json:"diff_text"`

	// IsNewFile indicates the diff creates a file.
	IsNewFile bool `json:"is_new_file"`

	// IsDeletedFile indicates the diff deletes a file.
	IsDeletedFile bool `json:"is_deleted_file"`

	// LinesAdded counts hunk body lines prefixed with "+".
	LinesAdded int `json:"lines_added"`

	// LinesRemoved counts hunk body lines prefixed with "-".
	LinesRemoved int `json:"lines_removed"`
}

// FileChange is one (old, new) content pair for multi-file synthesis.
type FileChange struct {
	// Path is the repo-relative file path.
	Path string

	// OldContent is the original content (empty for new files).
	OldContent string

	// NewContent is the proposed content (empty for deletions).
	NewContent string
}

// Synthesizer builds unified diffs anchored at a workspace root.
type Synthesizer struct {
	root string
}

// NewSynthesizer creates a synthesizer for the given workspace root.
//
// # Inputs
//
//   - root: Workspace root used to resolve paths for the exists check.
//     May be empty if Synthesize is never called with checkExists.
//
// # Outputs
//
//   - *Synthesizer: Ready-to-use synthesizer.
func NewSynthesizer(root string) *Synthesizer {
	return &Synthesizer{root: root}
}

// Synthesize builds a unified diff for a single file.
//
// # Description
//
// Classifies the change as new (old empty, new non-empty), deleted
// (old non-empty, new empty), or modified. When checkExists is set and
// the change looks new but the file already exists on disk, the actual
// on-disk content replaces the caller's stale empty view and the change
// is reclassified as a modification. This prevents silently clobbering
// an existing file.
//
// # Inputs
//
//   - filePath: Repo-relative path used in the diff headers.
//   - oldContent: The caller's view of the current content.
//   - newContent: The proposed content.
//   - checkExists: Re-read disk before trusting an empty oldContent.
//
// # Outputs
//
//   - *Result: Diff text plus classification and line counts.
//   - error: Non-nil on disk read failure during the exists check.
func (s *Synthesizer) Synthesize(filePath, oldContent, newContent string, checkExists bool) (*Result, error) {
	headerPath := strings.ReplaceAll(filePath, "\\", "/")

	isNew := oldContent == "" && newContent != ""
	if isNew && checkExists {
		onDisk, exists, err := s.readExisting(filePath)
		if err != nil {
			return nil, err
		}
		if exists {
			oldContent = onDisk
			isNew = false
		}
	}

	isDeleted := oldContent != "" && newContent == ""

	if oldContent == newContent {
		return &Result{IsNewFile: isNew, IsDeletedFile: isDeleted}, nil
	}

	fromFile := "a/" + headerPath
	toFile := "b/" + headerPath
	if isNew {
		fromFile = "/dev/null"
	}
	if isDeleted {
		toFile = "/dev/null"
	}

	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitForDiff(oldContent),
		B:        splitForDiff(newContent),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  contextLines,
	})
	if err != nil {
		return nil, fmt.Errorf("building unified diff for %s: %w", filePath, err)
	}
	body = markMissingNewlines(body)

	var sb strings.Builder
	fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", headerPath, headerPath)
	if isNew {
		sb.WriteString("new file mode 100644\n")
	}
	if isDeleted {
		sb.WriteString("deleted file mode 100644\n")
	}
	sb.WriteString(body)

	result := &Result{
		DiffText:      sb.String(),
		IsNewFile:     isNew,
		IsDeletedFile: isDeleted,
	}
	result.LinesAdded, result.LinesRemoved = countChangedLines(body)
	return result, nil
}

// SynthesizeMulti builds one concatenated diff covering several files.
//
// # Description
//
// Per-file diffs are separated by a blank line; the combined text ends
// with exactly one trailing newline. Files whose content is unchanged
// contribute nothing.
func (s *Synthesizer) SynthesizeMulti(changes []FileChange, checkExists bool) (string, []*Result, error) {
	var parts []string
	results := make([]*Result, 0, len(changes))

	for _, change := range changes {
		result, err := s.Synthesize(change.Path, change.OldContent, change.NewContent, checkExists)
		if err != nil {
			return "", nil, err
		}
		results = append(results, result)
		if result.DiffText != "" {
			parts = append(parts, strings.TrimRight(result.DiffText, "\n"))
		}
	}

	if len(parts) == 0 {
		return "", results, nil
	}
	return strings.Join(parts, "\n\n") + "\n", results, nil
}

// readExisting reads the current on-disk content of filePath under the
// workspace root, reporting whether the file exists.
func (s *Synthesizer) readExisting(filePath string) (string, bool, error) {
	if s.root == "" {
		return "", false, nil
	}
	fullPath := filepath.Join(s.root, filepath.FromSlash(strings.ReplaceAll(filePath, "\\", "/")))
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading existing file %s: %w", filePath, err)
	}
	return string(data), true, nil
}

// countChangedLines counts added/removed hunk body lines, excluding the
// +++/--- header lines.
func countChangedLines(diffText string) (added, removed int) {
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// noEOLMark tags a final line that lacks its trailing newline so the
// differ keeps it distinct from the newline-terminated form. NUL never
// occurs in the text content this pipeline diffs.
const noEOLMark = "\x00"

// splitForDiff splits content into newline-terminated lines. A final
// line missing its newline is tagged with noEOLMark so newline-ness at
// end of file participates in the comparison.
func splitForDiff(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	lines[len(lines)-1] += noEOLMark + "\n"
	return lines
}

// markMissingNewlines rewrites noEOLMark-tagged hunk lines into the
// "\ No newline at end of file" form git apply honors.
func markMissingNewlines(body string) string {
	return strings.ReplaceAll(body, noEOLMark+"\n", "\n\\ No newline at end of file\n")
}
