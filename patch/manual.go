// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManualApply reconstructs and writes brand-new files directly from a
// diff's added lines.
//
// # Description
//
// Last-resort path for diffs the engine cannot apply at all. Each
// diff --git section is classified as new-file or existing-file by the
// null-source marker. If any section touches an existing file the whole
// call is refused with zero files written, even when targetFiles would
// exclude that section: a partial patch cannot be safely reconstructed
// from added-line scanning alone. Qualifying new-file sections have
// their content rebuilt by concatenating added lines across all hunks
// and are written directly.
//
// # Inputs
//
//   - diffText: The unified diff.
//   - targetFiles: Optional restriction; when non-empty, only sections
//     whose path is listed are written.
//
// # Outputs
//
//   - *ApplyResult: MethodManual on success. On an I/O failure the
//     result lists which files were written before the fault.
//   - error: Always nil; all failure modes resolve to a typed result.
func (e *Engine) ManualApply(diffText string, targetFiles []string) (*ApplyResult, error) {
	fileDiffs, err := Parse(diffText)
	if err != nil {
		return &ApplyResult{
			Success:     false,
			Method:      MethodFailed,
			Message:     "malformed diff",
			ErrorOutput: err.Error(),
		}, nil
	}

	// Classify every section before filtering: an existing-file section
	// anywhere in the diff refuses the whole call.
	for _, fd := range fileDiffs {
		if !isNewFileSection(fd) {
			return &ApplyResult{
				Success: false,
				Method:  MethodFailed,
				Message: fmt.Sprintf("manual apply supports new files only; %s modifies an existing file", SectionPath(fd)),
			}, nil
		}
	}

	targets := make(map[string]bool, len(targetFiles))
	for _, t := range targetFiles {
		targets[strings.ReplaceAll(t, "\\", "/")] = true
	}

	type section struct {
		path    string
		content string
	}
	var sections []section

	for _, fd := range fileDiffs {
		path := SectionPath(fd)
		if len(targets) > 0 && !targets[path] {
			continue
		}

		if err := checkManualPath(path); err != nil {
			return &ApplyResult{
				Success: false,
				Method:  MethodFailed,
				Message: err.Error(),
			}, nil
		}

		var lines []string
		for _, hunk := range fd.Hunks {
			lines = append(lines, addedLines(hunk)...)
		}
		sections = append(sections, section{path: path, content: strings.Join(lines, "\n") + "\n"})
	}

	if len(sections) == 0 {
		return &ApplyResult{
			Success: false,
			Method:  MethodFailed,
			Message: "no new-file sections to extract",
		}, nil
	}

	var written []string
	for _, sec := range sections {
		fullPath := filepath.Join(e.workspace, filepath.FromSlash(sec.path))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return &ApplyResult{
				Success:       false,
				Method:        MethodFailed,
				Message:       fmt.Sprintf("creating directories for %s: %v", sec.path, err),
				FilesModified: written,
			}, nil
		}
		if err := os.WriteFile(fullPath, []byte(sec.content), 0644); err != nil {
			return &ApplyResult{
				Success:       false,
				Method:        MethodFailed,
				Message:       fmt.Sprintf("writing %s: %v", sec.path, err),
				FilesModified: written,
			}, nil
		}
		written = append(written, sec.path)
	}

	e.logger.Info("manual apply extracted new files", "files", len(written))
	return &ApplyResult{
		Success:       true,
		Method:        MethodManual,
		Message:       fmt.Sprintf("extracted %d new file(s)", len(written)),
		FilesModified: written,
	}, nil
}

// checkManualPath rejects absolute and traversal paths before any disk
// write.
func checkManualPath(path string) error {
	if path == "" {
		return fmt.Errorf("diff section has no usable path")
	}
	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		return fmt.Errorf("absolute path not allowed: %s", path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal not allowed: %s", path)
		}
	}
	return nil
}
