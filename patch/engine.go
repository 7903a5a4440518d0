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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ApplyOptions configures one engine apply attempt.
type ApplyOptions struct {
	// CheckOnly validates applicability without mutating the tree.
	CheckOnly bool

	// Reverse applies the diff in reverse.
	Reverse bool
}

// strategy is one escalation step of the apply chain.
type strategy struct {
	method Method
	args   []string

	// dryRunCheck controls whether the strategy is preceded by a
	// side-effect-free --check run. The three-way merge has no such
	// check; its applicability is only known by attempting it.
	dryRunCheck bool
}

// strategies returns the escalation chain, strictest first.
func strategies() []strategy {
	return []strategy{
		{method: MethodStrict, dryRunCheck: true},
		{method: MethodLenient, args: []string{"--ignore-whitespace", "-C1"}, dryRunCheck: true},
		{method: MethodThreeWay, args: []string{"--3way"}},
	}
}

// Engine applies unified diffs to a working tree via git apply.
type Engine struct {
	workspace string
	gitPath   string
	logger    *slog.Logger
}

// NewEngine creates an engine for the given workspace.
//
// # Inputs
//
//   - workspace: Working tree root. Must be an absolute path to a
//     directory.
//   - logger: Structured logger. Nil falls back to slog.Default().
//
// # Outputs
//
//   - *Engine: Ready-to-use engine.
//   - error: Non-nil if the workspace is invalid.
func NewEngine(workspace string, logger *slog.Logger) (*Engine, error) {
	if !filepath.IsAbs(workspace) {
		return nil, fmt.Errorf("workspace must be absolute: %s", workspace)
	}
	info, err := os.Stat(workspace)
	if err != nil {
		return nil, fmt.Errorf("stat workspace: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace is not a directory: %s", workspace)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{workspace: workspace, gitPath: "git", logger: logger}, nil
}

// Apply applies a unified diff with escalating strategies.
//
// # Description
//
// The diff is written to a scratch file (removed on every exit path)
// and tried against the working tree strategy by strategy: strict
// context matching, then whitespace-lenient with reduced context, then
// a three-way merge. Strict and lenient are preceded by a dry-run
// check; the first strategy whose check passes performs the real
// application. With CheckOnly set, the first passing check returns
// without mutating disk, and the three-way strategy is skipped since it
// has no side-effect-free check.
//
// # Inputs
//
//   - ctx: Context for cancellation of the tool invocations.
//   - diffText: The unified diff.
//   - opts: Apply options.
//
// # Outputs
//
//   - *ApplyResult: Which method succeeded, or MethodFailed with the
//     last strategy's diagnostic output. Malformed diffs yield a failed
//     result, not an error.
//   - error: Non-nil only for system-level failures (scratch file I/O).
func (e *Engine) Apply(ctx context.Context, diffText string, opts ApplyOptions) (*ApplyResult, error) {
	touched, err := TouchedPaths(diffText)
	if err != nil {
		return &ApplyResult{
			Success:     false,
			Method:      MethodFailed,
			Message:     "malformed diff",
			ErrorOutput: err.Error(),
		}, nil
	}

	scratch, err := os.CreateTemp("", "autopack-apply-*.diff")
	if err != nil {
		return nil, fmt.Errorf("creating scratch diff file: %w", err)
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	if _, err := scratch.WriteString(diffText); err != nil {
		scratch.Close()
		return nil, fmt.Errorf("writing scratch diff file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return nil, fmt.Errorf("closing scratch diff file: %w", err)
	}

	var lastOutput string
	for _, strat := range strategies() {
		if strat.dryRunCheck {
			if output, err := e.runGitApply(ctx, scratchPath, strat.args, opts.Reverse, true); err != nil {
				lastOutput = output
				e.logger.Debug("apply check failed", "method", strat.method, "output", output)
				continue
			}
			if opts.CheckOnly {
				return &ApplyResult{
					Success:       true,
					Method:        strat.method,
					Message:       fmt.Sprintf("dry-run check passed via %s", strat.method),
					FilesModified: touched,
				}, nil
			}
		} else if opts.CheckOnly {
			continue
		}

		output, err := e.runGitApply(ctx, scratchPath, strat.args, opts.Reverse, false)
		if err != nil {
			lastOutput = output
			e.logger.Debug("apply attempt failed", "method", strat.method, "output", output)
			continue
		}

		e.logger.Info("diff applied", "method", strat.method, "files", len(touched))
		return &ApplyResult{
			Success:       true,
			Method:        strat.method,
			Message:       fmt.Sprintf("applied via %s", strat.method),
			FilesModified: touched,
		}, nil
	}

	return &ApplyResult{
		Success:     false,
		Method:      MethodFailed,
		Message:     "all apply strategies exhausted",
		ErrorOutput: lastOutput,
	}, nil
}

// runGitApply invokes git apply with the given strategy arguments,
// returning combined output and any execution error.
func (e *Engine) runGitApply(ctx context.Context, scratchPath string, extraArgs []string, reverse, checkOnly bool) (string, error) {
	args := []string{"-C", e.workspace, "apply"}
	if checkOnly {
		args = append(args, "--check")
	}
	if reverse {
		args = append(args, "--reverse")
	}
	args = append(args, extraArgs...)
	args = append(args, scratchPath)

	cmd := exec.CommandContext(ctx, e.gitPath, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	return strings.TrimSpace(output.String()), err
}
