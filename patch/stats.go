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
	"regexp"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// fusedHunkHeader matches a hunk header whose first content line shares
// the header's physical line, a malformation some diff generators emit.
// A space after the closing @@ is a legitimate section heading and does
// not match.
var fusedHunkHeader = regexp.MustCompile(`(?m)^(@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@)([+-].*)$`)

// Parse parses a unified diff into per-file sections. Hunk headers with
// a fused first content line are split onto two lines first.
func Parse(diffText string) ([]*diff.FileDiff, error) {
	diffText = fusedHunkHeader.ReplaceAllString(diffText, "$1\n$2")
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(diffText)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	return fileDiffs, nil
}

// ComputeStats calculates files-affected and line counts for a diff.
func ComputeStats(diffText string) (*Stats, error) {
	fileDiffs, err := Parse(diffText)
	if err != nil {
		return nil, err
	}

	stats := &Stats{FilesAffected: len(fileDiffs)}
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
					stats.LinesAdded++
				} else if strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---") {
					stats.LinesRemoved++
				}
			}
		}
	}
	return stats, nil
}

// TouchedPaths returns the repo-relative paths a diff touches, in diff
// order, without duplicates.
func TouchedPaths(diffText string) ([]string, error) {
	fileDiffs, err := Parse(diffText)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fileDiffs))
	var paths []string
	for _, fd := range fileDiffs {
		path := SectionPath(fd)
		if path != "" && !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// SectionPath extracts the effective path of one file section,
// preferring the new name and stripping the a/ b/ git prefixes.
func SectionPath(fd *diff.FileDiff) string {
	path := fd.NewName
	if path == "" || path == "/dev/null" {
		path = fd.OrigName
	}
	return stripGitPrefix(path)
}

// stripGitPrefix removes the a/ or b/ prefix git places on diff paths.
func stripGitPrefix(name string) string {
	if name == "/dev/null" {
		return ""
	}
	name = strings.TrimPrefix(name, "a/")
	name = strings.TrimPrefix(name, "b/")
	return name
}

// isNewFileSection reports whether a file section creates a file, by
// presence of the null-source marker.
func isNewFileSection(fd *diff.FileDiff) bool {
	return fd.OrigName == "/dev/null"
}

// isDeleteSection reports whether a file section deletes a file.
func isDeleteSection(fd *diff.FileDiff) bool {
	return fd.NewName == "/dev/null"
}

// ApplyFileDiff computes the patched content of one file section
// without touching disk.
//
// # Description
//
// Used to preview post-patch content for format and syntax validation
// before the real apply. New-file sections are reconstructed from added
// lines; deletions yield nil; modifications splice hunks into the
// original by position.
func ApplyFileDiff(original []byte, fd *diff.FileDiff) ([]byte, error) {
	if isDeleteSection(fd) {
		return nil, nil
	}

	if isNewFileSection(fd) || len(original) == 0 {
		var lines []string
		for _, hunk := range fd.Hunks {
			lines = append(lines, addedLines(hunk)...)
		}
		return []byte(strings.Join(lines, "\n") + "\n"), nil
	}

	origLines := strings.Split(string(original), "\n")
	newLines := make([]string, 0, len(origLines))

	origIdx := 0
	for _, hunk := range fd.Hunks {
		hunkStart := int(hunk.OrigStartLine) - 1
		if hunkStart < 0 || hunkStart > len(origLines) {
			return nil, fmt.Errorf("hunk start %d out of range", hunk.OrigStartLine)
		}
		for origIdx < hunkStart {
			newLines = append(newLines, origLines[origIdx])
			origIdx++
		}

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			case strings.HasPrefix(line, "+"):
				newLines = append(newLines, strings.TrimPrefix(line, "+"))
			case strings.HasPrefix(line, "-"):
				origIdx++
			case strings.HasPrefix(line, " ") || line == "":
				if origIdx < len(origLines) {
					newLines = append(newLines, origLines[origIdx])
					origIdx++
				}
			}
		}
	}

	for origIdx < len(origLines) {
		newLines = append(newLines, origLines[origIdx])
		origIdx++
	}

	return []byte(strings.Join(newLines, "\n")), nil
}

// addedLines extracts the added-line bodies of one hunk.
func addedLines(hunk *diff.Hunk) []string {
	var lines []string
	for _, line := range strings.Split(string(hunk.Body), "\n") {
		if strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++") {
			lines = append(lines, strings.TrimPrefix(line, "+"))
		}
	}
	return lines
}
