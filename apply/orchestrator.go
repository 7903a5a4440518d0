// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apply

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hshk99/Autopack-sub017/edit"
	"github.com/hshk99/Autopack-sub017/metrics"
	"github.com/hshk99/Autopack-sub017/patch"
	"github.com/hshk99/Autopack-sub017/scope"
	"github.com/hshk99/Autopack-sub017/validate"
)

// pathSampleLimit caps the touched-path sample written to summaries.
const pathSampleLimit = 50

// DefaultSensitiveRoots are the directory roots whose deliverables are
// allow-listed explicitly when a phase declares no scope of its own.
func DefaultSensitiveRoots() []string {
	return []string{"src/autopack", "src/cli", "research"}
}

// Config assembles an Orchestrator. Workspace is required; every
// collaborator is optional and its step is skipped when nil.
type Config struct {
	// Workspace is the absolute root of the working tree.
	Workspace string

	// ProtectedPaths override scope.DefaultProtectedPaths when set.
	ProtectedPaths []string

	// SensitiveRoots override DefaultSensitiveRoots when set.
	SensitiveRoots []string

	// DryRun validates and stages every change without writing disk.
	DryRun bool

	// Backups copies files touched by an edit plan to "<path>.orig"
	// before overwriting.
	Backups bool

	Logger *slog.Logger

	Format     FormatValidator
	Syntax     SyntaxChecker
	Drift      DriftChecker
	Escalation EscalationHandler
	Summary    SummaryWriter
}

// Orchestrator owns the write path for one workspace: it validates a
// proposed change, enforces scope, and dispatches to the structured
// edit interpreter or the patch engine.
//
// Thread Safety: NOT safe for concurrent use against one workspace.
// The caller must ensure at most one Apply is in flight per workspace;
// the orchestrator is the lock boundary but does not itself lock.
type Orchestrator struct {
	workspace      string
	protectedPaths []string
	sensitiveRoots []string
	dryRun         bool
	backups        bool
	logger         *slog.Logger

	interp *edit.Interpreter
	engine *patch.Engine

	classifier *metrics.ChangeClassifier
	churn      *metrics.ChurnCalculator
	symbols    *metrics.SymbolValidator

	format     FormatValidator
	syntax     SyntaxChecker
	drift      DriftChecker
	escalation EscalationHandler
	summary    SummaryWriter
}

// New creates an Orchestrator for the given workspace.
//
// # Inputs
//
//   - cfg: See Config. Workspace must be an existing absolute
//     directory.
//
// # Outputs
//
//   - *Orchestrator: Ready to use.
//   - error: Non-nil if the workspace is invalid.
func New(cfg Config) (*Orchestrator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interp, err := edit.NewInterpreter(cfg.Workspace, logger)
	if err != nil {
		return nil, err
	}
	engine, err := patch.NewEngine(cfg.Workspace, logger)
	if err != nil {
		return nil, err
	}

	protected := cfg.ProtectedPaths
	if protected == nil {
		protected = scope.DefaultProtectedPaths()
	}
	sensitive := cfg.SensitiveRoots
	if sensitive == nil {
		sensitive = DefaultSensitiveRoots()
	}

	return &Orchestrator{
		workspace:      cfg.Workspace,
		protectedPaths: protected,
		sensitiveRoots: sensitive,
		dryRun:         cfg.DryRun,
		backups:        cfg.Backups,
		logger:         logger,
		interp:         interp,
		engine:         engine,
		classifier:     metrics.NewChangeClassifier(),
		churn:          metrics.NewChurnCalculator(),
		symbols:        metrics.NewSymbolValidator(),
		format:         cfg.Format,
		syntax:         cfg.Syntax,
		drift:          cfg.Drift,
		escalation:     cfg.Escalation,
		summary:        cfg.Summary,
	}, nil
}

// Apply runs one proposed change through validation, scope enforcement,
// and the matching write path.
//
// # Description
//
// Edit-plan proposals go straight to the scope guard and then the
// structured-edit interpreter. Diff proposals additionally pass format
// validation of any YAML files they touch, advisory syntax checking,
// and a goal-drift check before the scope guard and the patch engine.
// Any violation aborts with no filesystem mutation. A protected-path
// conflict triggers the governance-escalation collaborator before the
// unsuccessful Outcome is returned.
//
// # Inputs
//
//   - ctx: Context for tracing and the external git invocation.
//   - proposal: The tagged change union; see Proposal.
//   - phase: Phase identity, deliverables, scope, and objective.
//
// # Outputs
//
//   - *Outcome: Always non-nil on nil error; all known failure modes
//     resolve to an unsuccessful Outcome, never a bare error.
//   - error: Non-nil only for a malformed Proposal union.
func (o *Orchestrator) Apply(ctx context.Context, proposal Proposal, phase PhaseContext) (*Outcome, error) {
	if err := proposal.Validate(); err != nil {
		return nil, err
	}

	ctx, span := startApplySpan(ctx, proposal.Kind, phase.PhaseID)
	defer span.End()
	start := time.Now()

	var outcome *Outcome
	switch proposal.Kind {
	case KindEditPlan:
		outcome = o.applyPlan(ctx, proposal.Plan, phase)
	case KindDiff:
		outcome = o.applyDiff(ctx, proposal.DiffText, phase)
	}
	outcome.AttemptID = uuid.NewString()

	setApplySpanResult(span, outcome)
	recordApplyMetrics(ctx, proposal.Kind, time.Since(start), outcome.Success)
	o.writeSummary(phase, outcome)

	return outcome, nil
}

// applyPlan handles a structured edit plan.
func (o *Orchestrator) applyPlan(ctx context.Context, plan *edit.Plan, phase PhaseContext) *Outcome {
	if err := plan.Validate(); err != nil {
		return &Outcome{
			Mode:    ModeEditPlan,
			Message: fmt.Sprintf("invalid edit plan: %v", err),
		}
	}

	if outcome := o.checkScope(ctx, plan.Files(), "", phase); outcome != nil {
		return outcome
	}

	opts := edit.DefaultOptions()
	opts.DryRun = o.dryRun
	opts.Backups = o.backups
	result, err := o.interp.Apply(ctx, plan, opts)
	if err != nil {
		return &Outcome{
			Mode:    ModeEditPlan,
			Message: fmt.Sprintf("edit plan rejected: %v", err),
		}
	}

	outcome := &Outcome{
		Success:       result.Success(),
		Mode:          ModeEditPlan,
		FilesModified: result.FilesWritten,
		OpsApplied:    result.Applied,
		OpsFailed:     result.Failed,
	}
	if outcome.Success {
		if result.DryRun {
			// Nothing reaches disk on a dry run; report staged files.
			outcome.Message = fmt.Sprintf("staged %d operation(s) across %d file(s)", result.Applied, len(plan.Files()))
		} else {
			outcome.Message = fmt.Sprintf("applied %d operation(s) across %d file(s)", result.Applied, len(result.FilesWritten))
		}
	} else {
		outcome.Message = fmt.Sprintf("%d of %d operation(s) failed", result.Failed, result.Applied+result.Failed)
		if len(result.Errors) > 0 {
			outcome.ErrorOutput = result.Errors[0].Message
		}
	}
	return outcome
}

// applyDiff handles a unified diff proposal.
func (o *Orchestrator) applyDiff(ctx context.Context, diffText string, phase PhaseContext) *Outcome {
	touched, err := patch.TouchedPaths(diffText)
	if err != nil {
		return &Outcome{
			Mode:        ModeDiff,
			Message:     "malformed diff",
			ErrorOutput: err.Error(),
		}
	}

	o.classifyChange(phase, diffText, touched)

	if outcome := o.validateFormats(ctx, diffText, touched); outcome != nil {
		return outcome
	}

	if o.drift != nil && phase.GoalAnchor != "" {
		block, reason := o.drift.ShouldBlock(phase.GoalAnchor, phase.ChangeIntent)
		if block {
			return &Outcome{
				Mode:    ModeDiff,
				Message: fmt.Sprintf("goal drift: %s", reason),
			}
		}
		if reason != "" {
			o.logger.Warn("goal drift advisory", "phase_id", phase.PhaseID, "reason", reason)
		}
	}

	if outcome := o.checkScope(ctx, touched, diffText, phase); outcome != nil {
		return outcome
	}

	result, err := o.engine.Apply(ctx, diffText, patch.ApplyOptions{CheckOnly: o.dryRun})
	if err != nil {
		return &Outcome{
			Mode:        ModeDiff,
			Message:     "patch engine error",
			ErrorOutput: err.Error(),
		}
	}

	return &Outcome{
		Success:       result.Success,
		Mode:          ModeDiff,
		Message:       fmt.Sprintf("%s: %s", result.Method, result.Message),
		FilesModified: result.FilesModified,
		ErrorOutput:   result.ErrorOutput,
	}
}

// classifyChange logs the advisory change classification and flags
// per-file churn above the classification's threshold, plus removed
// top-level symbols when the phase did not declare any. Advisory only:
// enforcement of these gates belongs to the external quality layer.
func (o *Orchestrator) classifyChange(phase PhaseContext, diffText string, touched []string) {
	spec := metrics.PhaseSpec{
		Complexity:         phase.Complexity,
		AcceptanceCriteria: phase.AcceptanceCriteria,
		ChangeSize:         phase.ChangeSize,
		AllowSymbolRemoval: phase.AllowSymbolRemoval,
	}
	scopePaths := phase.ScopePaths
	if len(scopePaths) == 0 {
		scopePaths = touched
	}
	changeType := o.classifier.Classify(spec, scopePaths)
	threshold := o.classifier.ChurnThreshold(changeType)
	o.logger.Info("change classified",
		"phase_id", phase.PhaseID,
		"type", changeType,
		"churn_threshold", threshold)

	fileDiffs, err := patch.Parse(diffText)
	if err != nil {
		return
	}
	for _, fd := range fileDiffs {
		path := patch.SectionPath(fd)
		if path == "" {
			continue
		}
		original, err := o.readOriginal(path)
		if err != nil || original == nil {
			continue
		}
		preview, err := patch.ApplyFileDiff(original, fd)
		if err != nil || preview == nil {
			continue
		}
		if o.churn.IsHighChurn(string(original), string(preview), threshold) {
			o.logger.Warn("high churn", "path", path, "type", changeType)
		}
		if !phase.AllowSymbolRemoval {
			if missing := o.symbols.Validate(string(original), string(preview), path); len(missing) > 0 {
				o.logger.Warn("symbols removed", "path", path, "symbols", strings.Join(missing, ", "))
			}
		}
	}
}

// checkScope runs the scope guard over the candidate paths. The
// allow-list is the phase's scope, or when that is empty, the phase's
// deliverables restricted to the sensitive roots. A protected-path
// violation triggers the escalation collaborator. Returns nil when all
// paths pass.
func (o *Orchestrator) checkScope(ctx context.Context, paths []string, diffText string, phase PhaseContext) *Outcome {
	scopePaths := phase.ScopePaths
	if len(scopePaths) == 0 {
		scopePaths = o.deriveScope(phase.Deliverables)
	}

	guard := scope.NewGuard(scopePaths, o.protectedPaths)
	decision := guard.Check(paths)
	if decision.OK {
		return nil
	}

	first := decision.Violations[0]
	recordViolation(ctx, first.Reason.String())
	o.logger.Warn("scope violation",
		"phase_id", phase.PhaseID,
		"path", first.Path,
		"reason", first.Reason,
		"violations", len(decision.Violations))

	outcome := &Outcome{
		Mode:        modeFor(diffText),
		Message:     fmt.Sprintf("scope violation: %s (%s)", first.Path, first.Reason),
		ErrorOutput: describeViolations(decision.Violations),
	}

	if decision.HasProtected() && o.escalation != nil {
		outcome.EscalationRequested = o.escalation.TryHandle(ctx, phase.PhaseID,
			outcome.Message, diffText, map[string]string{
				"path":   first.Path,
				"reason": first.Reason.String(),
			})
	}
	return outcome
}

// deriveScope builds an allow-list from deliverables that live under a
// sensitive root. Deliverables elsewhere need no entry: an empty
// allow-list leaves non-protected paths unrestricted.
func (o *Orchestrator) deriveScope(deliverables []string) []string {
	var derived []string
	for _, d := range deliverables {
		clean := strings.ReplaceAll(d, "\\", "/")
		for _, root := range o.sensitiveRoots {
			if clean == root || strings.HasPrefix(clean, root+"/") {
				derived = append(derived, clean)
				break
			}
		}
	}
	return derived
}

// validateFormats previews the post-patch content of any YAML file the
// diff touches and rejects the whole proposal when one is invalid.
// Source files get an advisory syntax check that logs but never blocks.
// Returns nil when everything passes.
func (o *Orchestrator) validateFormats(ctx context.Context, diffText string, touched []string) *Outcome {
	if o.format == nil && o.syntax == nil {
		return nil
	}
	if !anyYAML(touched) && o.syntax == nil {
		return nil
	}

	fileDiffs, err := patch.Parse(diffText)
	if err != nil {
		return &Outcome{
			Mode:        ModeDiff,
			Message:     "malformed diff",
			ErrorOutput: err.Error(),
		}
	}

	for _, fd := range fileDiffs {
		path := patch.SectionPath(fd)
		if path == "" {
			continue
		}

		checkYAML := o.format != nil && validate.IsYAMLPath(path)
		checkSyntax := o.syntax != nil && isSourcePath(path)
		if !checkYAML && !checkSyntax {
			continue
		}

		original, err := o.readOriginal(path)
		if err != nil {
			continue
		}
		preview, err := patch.ApplyFileDiff(original, fd)
		if err != nil || preview == nil {
			continue
		}

		if checkYAML {
			result := o.format.Validate(string(preview), path)
			if !result.Valid {
				return &Outcome{
					Mode:        ModeDiff,
					Message:     fmt.Sprintf("format validation failed for %s", path),
					ErrorOutput: strings.Join(result.Errors, "; "),
				}
			}
			for _, w := range result.Warnings {
				o.logger.Warn("format warning", "path", path, "warning", w)
			}
		}

		if checkSyntax {
			result, err := o.syntax.Validate(ctx, preview, path)
			if err == nil && !result.Valid {
				o.logger.Warn("syntax check failed", "path", path, "errors", strings.Join(result.Errors, "; "))
			}
		}
	}
	return nil
}

// readOriginal loads the current content of a repo-relative path, nil
// when the file does not exist yet.
func (o *Orchestrator) readOriginal(path string) ([]byte, error) {
	full := filepath.Join(o.workspace, filepath.FromSlash(path))
	content, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return content, err
}

// writeSummary records apply statistics for the phase-summary writer.
// Best-effort: an error is logged and otherwise ignored.
func (o *Orchestrator) writeSummary(phase PhaseContext, outcome *Outcome) {
	if o.summary == nil {
		return
	}

	lines := []string{
		fmt.Sprintf("mode: %s", outcome.Mode),
		fmt.Sprintf("success: %t", outcome.Success),
		fmt.Sprintf("files_modified: %d", len(outcome.FilesModified)),
	}
	if outcome.Mode == ModeEditPlan {
		lines = append(lines,
			fmt.Sprintf("ops_applied: %d", outcome.OpsApplied),
			fmt.Sprintf("ops_failed: %d", outcome.OpsFailed))
	}
	sample := outcome.FilesModified
	if len(sample) > pathSampleLimit {
		sample = sample[:pathSampleLimit]
	}
	for _, p := range sample {
		lines = append(lines, "  "+p)
	}

	if err := o.summary.Write(phase.PhaseIndex, phase.PhaseID, lines); err != nil {
		o.logger.Warn("phase summary write failed", "phase_id", phase.PhaseID, "error", err)
	}
}

// modeFor distinguishes the two proposal kinds inside shared helpers.
func modeFor(diffText string) Mode {
	if diffText == "" {
		return ModeEditPlan
	}
	return ModeDiff
}

// describeViolations flattens violations into one diagnostic string.
func describeViolations(violations []scope.Violation) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Path, v.Reason))
	}
	return strings.Join(parts, "\n")
}

// anyYAML reports whether any touched path is a YAML file.
func anyYAML(paths []string) bool {
	for _, p := range paths {
		if validate.IsYAMLPath(p) {
			return true
		}
	}
	return false
}

// isSourcePath reports whether a path has a syntax-checkable extension.
func isSourcePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".py", ".pyi":
		return true
	default:
		return false
	}
}
