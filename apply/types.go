// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apply orchestrates the write path for proposed code changes:
// format validation, goal-drift checking, scope enforcement, and
// dispatch to the structured-edit interpreter or the patch engine.
package apply

import (
	"fmt"

	"github.com/hshk99/Autopack-sub017/edit"
)

// === Proposal ===

// ProposalKind discriminates the two ways a change can be proposed.
type ProposalKind string

const (
	// KindEditPlan is a structured line-edit plan.
	KindEditPlan ProposalKind = "edit_plan"

	// KindDiff is a unified diff in git format.
	KindDiff ProposalKind = "diff"
)

// Proposal is a tagged union over the two proposal kinds. Exactly one
// of Plan or DiffText is set, matching Kind.
type Proposal struct {
	Kind     ProposalKind `json:"kind"`
	Plan     *edit.Plan   `json:"plan,omitempty"`
	DiffText string       `json:"diff_text,omitempty"`
}

// NewPlanProposal wraps a structured edit plan.
func NewPlanProposal(plan *edit.Plan) Proposal {
	return Proposal{Kind: KindEditPlan, Plan: plan}
}

// NewDiffProposal wraps a unified diff.
func NewDiffProposal(diffText string) Proposal {
	return Proposal{Kind: KindDiff, DiffText: diffText}
}

// Validate checks that the union is well-formed.
func (p *Proposal) Validate() error {
	switch p.Kind {
	case KindEditPlan:
		if p.Plan == nil {
			return fmt.Errorf("edit_plan proposal has no plan")
		}
	case KindDiff:
		if p.DiffText == "" {
			return fmt.Errorf("diff proposal has no diff text")
		}
	default:
		return fmt.Errorf("unknown proposal kind: %q", p.Kind)
	}
	return nil
}

// === Phase context ===

// PhaseContext carries the run-level information the orchestrator needs
// to validate one proposed change: identity for reporting, the phase's
// declared scope, and the objective used for drift checking.
type PhaseContext struct {
	// PhaseID identifies the phase for summaries and escalation.
	PhaseID string `json:"phase_id"`

	// PhaseIndex is the phase's position within the run.
	PhaseIndex int `json:"phase_index"`

	// Deliverables are the paths this phase declared it will produce.
	// Used to derive an allow-list when ScopePaths is empty.
	Deliverables []string `json:"deliverables,omitempty"`

	// GoalAnchor is the run's recorded objective.
	GoalAnchor string `json:"goal_anchor,omitempty"`

	// ChangeIntent describes what this change claims to do, compared
	// against GoalAnchor by the drift checker.
	ChangeIntent string `json:"change_intent,omitempty"`

	// ScopePaths are the explicitly allowed path prefixes. Empty means
	// the allow-list is derived from Deliverables.
	ScopePaths []string `json:"scope_paths,omitempty"`

	// Complexity is the declared phase complexity: low, medium, high.
	Complexity string `json:"complexity,omitempty"`

	// AcceptanceCriteria lists the phase's acceptance criteria.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`

	// ChangeSize is an explicit size override ("large" forces the
	// large-refactor classification).
	ChangeSize string `json:"change_size,omitempty"`

	// AllowSymbolRemoval marks phases expected to remove symbols.
	AllowSymbolRemoval bool `json:"allow_symbol_removal,omitempty"`
}

// === Outcome ===

// Mode records which write path handled the change.
type Mode string

const (
	ModeEditPlan Mode = "edit_plan"
	ModeDiff     Mode = "diff"
	ModeNone     Mode = "none"
)

// Outcome is the structured result of one apply attempt. All known
// failure modes resolve to an unsuccessful Outcome rather than an
// error; Apply returns an error only for programmer mistakes such as a
// malformed Proposal union.
type Outcome struct {
	// AttemptID uniquely identifies this apply attempt.
	AttemptID string `json:"attempt_id"`

	// Success reports whether the change reached disk in full (or, for
	// structured edits, with zero failed operations).
	Success bool `json:"success"`

	// Mode is the write path that handled (or rejected) the change.
	Mode Mode `json:"mode"`

	// Message is a short human-readable summary of what happened.
	Message string `json:"message"`

	// FilesModified lists the repo-relative paths written.
	FilesModified []string `json:"files_modified,omitempty"`

	// OpsApplied and OpsFailed are structured-edit operation counts.
	OpsApplied int `json:"ops_applied,omitempty"`
	OpsFailed  int `json:"ops_failed,omitempty"`

	// EscalationRequested reports that a governance escalation was
	// attempted for a protected-path conflict.
	EscalationRequested bool `json:"escalation_requested,omitempty"`

	// ErrorOutput carries diagnostic output from the failing tool.
	ErrorOutput string `json:"error_output,omitempty"`
}
