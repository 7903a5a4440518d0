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

	"github.com/hshk99/Autopack-sub017/validate"
)

// FormatValidator validates candidate file content before it reaches
// disk. The compose validator in the validate package satisfies this.
type FormatValidator interface {
	Validate(content, filePath string) *validate.Result
}

// SyntaxChecker parses candidate source content for structural errors.
// Results are advisory: a syntax failure is logged, not fatal.
type SyntaxChecker interface {
	Validate(ctx context.Context, content []byte, filePath string) (*validate.Result, error)
}

// DriftChecker compares a change's stated intent against the run's
// recorded objective.
//
// # Outputs
//
//   - bool: True when the change must be blocked.
//   - string: Human-readable reason, also logged for advisory results.
type DriftChecker interface {
	ShouldBlock(goalAnchor, changeIntent string) (bool, string)
}

// EscalationHandler requests governance approval when an apply fails on
// a protected-path conflict.
//
// TryHandle returns true when the escalation was accepted for follow-up;
// the apply attempt itself still reports failure either way.
type EscalationHandler interface {
	TryHandle(ctx context.Context, phaseID, errText, diffText string, applyContext map[string]string) bool
}

// SummaryWriter records apply statistics for the external phase-summary
// store. Calls are best-effort: the orchestrator swallows any error.
type SummaryWriter interface {
	Write(phaseIndex int, phaseID string, lines []string) error
}
