// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package edit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// contextWindow is the number of lines checked around a replace range
// when context_before/context_after sanity checks are supplied.
const contextWindow = 3

// Options configures plan application.
type Options struct {
	// DryRun computes every file's new content without writing disk.
	DryRun bool

	// Snapshots maps file paths to in-memory starting content,
	// preferred over disk reads when present.
	Snapshots map[string]string

	// Backups copies an existing file to "<path>.orig" before it is
	// overwritten. Files created by the plan get no backup.
	Backups bool

	// FileMode is the mode for written files (default: 0644).
	FileMode os.FileMode

	// DirMode is the mode for created parent directories (default: 0755).
	DirMode os.FileMode
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		FileMode: 0644,
		DirMode:  0755,
	}
}

// Interpreter applies validated edit plans to a workspace.
//
// # Description
//
// Application is per-file all-or-nothing: a failure mid-file drops that
// file's whole change set while other files' results are unaffected.
// Whole-plan atomicity across files is the caller's concern (typically
// via version-control checkpointing).
type Interpreter struct {
	root   string
	logger *slog.Logger
}

// NewInterpreter creates an interpreter rooted at a workspace directory.
//
// # Inputs
//
//   - root: Workspace root. Must be an absolute path to a directory.
//   - logger: Structured logger. Nil falls back to slog.Default().
//
// # Outputs
//
//   - *Interpreter: Ready-to-use interpreter.
//   - error: Non-nil if root is invalid.
func NewInterpreter(root string, logger *slog.Logger) (*Interpreter, error) {
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("workspace root must be absolute: %s", root)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root is not a directory: %s", root)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{root: root, logger: logger}, nil
}

// indexedOp pairs an operation with its plan index for error reporting.
type indexedOp struct {
	index int
	op    *Operation
}

// stagedFile is one file's computed result awaiting the disk write.
type stagedFile struct {
	path    string
	content string
	ops     []indexedOp
}

// Apply validates and applies a plan.
//
// # Description
//
// Per file: the starting content comes from the caller's snapshot, then
// disk, then empty (for files that do not exist yet). The file's
// operations are sorted by position and applied in descending order so
// later edits never shift the line numbering of earlier ones. Bounds
// are checked against the current line count at each step.
//
// # Inputs
//
//   - ctx: Context for cancellation between files. Once disk writes
//     begin there is no mid-apply cancellation.
//   - plan: The plan. Validated here; a validation error rejects the
//     whole proposal with no mutation.
//   - opts: Application options.
//
// # Outputs
//
//   - *Result: Applied/failed counts, first error per failed group,
//     files written.
//   - error: Non-nil only for plan validation failures and context
//     cancellation; apply failures are reported in the Result.
func (it *Interpreter) Apply(ctx context.Context, plan *Plan, opts Options) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0644
	}
	if opts.DirMode == 0 {
		opts.DirMode = 0755
	}

	result := &Result{DryRun: opts.DryRun}
	var staged []*stagedFile

	for _, path := range plan.Files() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ops := opsForFile(plan, path)

		if _, err := it.resolvePath(path); err != nil {
			it.failFile(result, ops, ops[0].index, path, err.Error())
			continue
		}

		content, err := it.startingContent(path, opts.Snapshots)
		if err != nil {
			it.failFile(result, ops, ops[0].index, path, err.Error())
			continue
		}

		newContent, failedIdx, opErr := applyToContent(content, ops)
		if opErr != nil {
			it.failFile(result, ops, failedIdx, path, opErr.Error())
			continue
		}

		staged = append(staged, &stagedFile{path: path, content: newContent, ops: ops})
	}

	for _, sf := range staged {
		if !opts.DryRun {
			if err := it.writeAtomic(sf.path, sf.content, opts); err != nil {
				// Already-written files stay written; only this file's
				// operations flip from applied to failed.
				it.failFile(result, sf.ops, sf.ops[0].index, sf.path, err.Error())
				continue
			}
			result.FilesWritten = append(result.FilesWritten, sf.path)
		}
		result.Applied += len(sf.ops)
	}

	it.logger.Info("edit plan applied",
		"summary", plan.Summary,
		"applied", result.Applied,
		"failed", result.Failed,
		"dry_run", opts.DryRun,
	)
	return result, nil
}

// failFile records a whole file's operations as failed, attributing the
// first error to the operation that raised it.
func (it *Interpreter) failFile(result *Result, ops []indexedOp, errIndex int, path, message string) {
	result.Failed += len(ops)
	result.Errors = append(result.Errors, OperationError{
		Index:    errIndex,
		FilePath: path,
		Message:  message,
	})
	it.logger.Warn("edit plan file dropped", "file", path, "error", message)
}

// opsForFile collects a file's operations with their plan indexes.
func opsForFile(plan *Plan, path string) []indexedOp {
	var ops []indexedOp
	for i := range plan.Operations {
		if plan.Operations[i].FilePath == path {
			ops = append(ops, indexedOp{index: i, op: &plan.Operations[i]})
		}
	}
	return ops
}

// startingContent resolves a file's content: snapshot, then disk, then
// empty for files that do not yet exist.
func (it *Interpreter) startingContent(path string, snapshots map[string]string) (string, error) {
	if snapshot, ok := snapshots[path]; ok {
		return snapshot, nil
	}

	fullPath, err := it.resolvePath(path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// resolvePath joins a plan path onto the workspace root, rejecting
// absolute paths and parent-directory traversal before touching disk.
func (it *Interpreter) resolvePath(path string) (string, error) {
	normalized := strings.ReplaceAll(path, "\\", "/")
	if filepath.IsAbs(normalized) || strings.HasPrefix(normalized, "/") {
		return "", fmt.Errorf("absolute path not allowed: %s", path)
	}
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", fmt.Errorf("path traversal not allowed: %s", path)
		}
	}
	return filepath.Join(it.root, filepath.FromSlash(normalized)), nil
}

// applyToContent applies a file's operations bottom-to-top, returning
// the new content, or the failing operation's plan index and error.
func applyToContent(content string, ops []indexedOp) (string, int, error) {
	sorted := make([]indexedOp, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].op.sortPos() > sorted[j].op.sortPos()
	})

	lines := splitKeepEnds(content)
	for _, item := range sorted {
		var err error
		lines, err = applyOp(lines, item.op)
		if err != nil {
			return "", item.index, fmt.Errorf("%s: %w", item.op.Kind, err)
		}
	}
	return strings.Join(lines, ""), 0, nil
}

// applyOp splices one operation into the line list. Bounds are checked
// against the current line count, not the original.
func applyOp(lines []string, op *Operation) ([]string, error) {
	switch op.Kind {
	case OpInsert:
		if op.Line > len(lines)+1 {
			return nil, fmt.Errorf("line %d out of bounds (file has %d lines)", op.Line, len(lines))
		}
		return splice(lines, op.Line-1, 0, op.Content), nil

	case OpReplace:
		if err := checkRange(lines, op.StartLine, op.EndLine); err != nil {
			return nil, err
		}
		if err := checkContext(lines, op); err != nil {
			return nil, err
		}
		return splice(lines, op.StartLine-1, op.EndLine-op.StartLine+1, op.Content), nil

	case OpDelete:
		if err := checkRange(lines, op.StartLine, op.EndLine); err != nil {
			return nil, err
		}
		return splice(lines, op.StartLine-1, op.EndLine-op.StartLine+1, ""), nil

	case OpAppend:
		return splice(lines, len(lines), 0, op.Content), nil

	case OpPrepend:
		return splice(lines, 0, 0, op.Content), nil
	}
	return nil, fmt.Errorf("unknown operation kind %q", op.Kind)
}

// checkRange validates an inclusive 1-indexed range against the current
// line count.
func checkRange(lines []string, start, end int) error {
	if start > len(lines) || end > len(lines) {
		return fmt.Errorf("range [%d,%d] out of bounds (file has %d lines)", start, end, len(lines))
	}
	return nil
}

// checkContext asserts the caller-supplied context substrings appear in
// the three-line windows around the replace range.
func checkContext(lines []string, op *Operation) error {
	if op.ContextBefore != "" {
		lo := op.StartLine - 1 - contextWindow
		if lo < 0 {
			lo = 0
		}
		window := strings.Join(lines[lo:op.StartLine-1], "")
		if !strings.Contains(window, op.ContextBefore) {
			return fmt.Errorf("context_before mismatch above line %d", op.StartLine)
		}
	}
	if op.ContextAfter != "" {
		hi := op.EndLine + contextWindow
		if hi > len(lines) {
			hi = len(lines)
		}
		window := strings.Join(lines[op.EndLine:hi], "")
		if !strings.Contains(window, op.ContextAfter) {
			return fmt.Errorf("context_after mismatch below line %d", op.EndLine)
		}
	}
	return nil
}

// splice replaces `remove` lines at index `at` with the content's lines.
func splice(lines []string, at, remove int, content string) []string {
	inserted := splitKeepEnds(content)
	result := make([]string, 0, len(lines)-remove+len(inserted))
	result = append(result, lines[:at]...)
	result = append(result, inserted...)
	result = append(result, lines[at+remove:]...)
	return result
}

// writeAtomic writes content via a temp file and rename, creating
// parent directories as needed.
func (it *Interpreter) writeAtomic(path, content string, opts Options) error {
	fullPath, err := it.resolvePath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, opts.DirMode); err != nil {
		return fmt.Errorf("creating directories for %s: %w", path, err)
	}

	if opts.Backups {
		if orig, err := os.ReadFile(fullPath); err == nil {
			if err := os.WriteFile(fullPath+".orig", orig, opts.FileMode); err != nil {
				return fmt.Errorf("writing backup for %s: %w", path, err)
			}
		}
	}

	tmp, err := os.CreateTemp(dir, ".autopack-edit-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, opts.FileMode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place %s: %w", path, err)
	}
	return nil
}

// splitKeepEnds splits content into lines that retain their newline,
// normalizing the final line to end with one.
func splitKeepEnds(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		return lines[:len(lines)-1]
	}
	lines[len(lines)-1] += "\n"
	return lines
}
