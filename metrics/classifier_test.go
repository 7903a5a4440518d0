// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeClassifier_Classify(t *testing.T) {
	c := NewChangeClassifier()

	cases := []struct {
		name       string
		phase      PhaseSpec
		scopePaths []string
		want       ChangeType
	}{
		{
			name:  "low_complexity_is_small_fix",
			phase: PhaseSpec{Complexity: "low"},
			want:  ChangeSmallFix,
		},
		{
			name: "medium_with_few_criteria_is_small_fix",
			phase: PhaseSpec{
				Complexity:         "medium",
				AcceptanceCriteria: []string{"a", "b", "c"},
			},
			want: ChangeSmallFix,
		},
		{
			name: "medium_with_many_criteria_is_large",
			phase: PhaseSpec{
				Complexity:         "medium",
				AcceptanceCriteria: []string{"a", "b", "c", "d"},
			},
			want: ChangeLargeRefactor,
		},
		{
			name:  "high_complexity_is_large",
			phase: PhaseSpec{Complexity: "high"},
			want:  ChangeLargeRefactor,
		},
		{
			name:  "change_size_flag_overrides_complexity",
			phase: PhaseSpec{Complexity: "low", ChangeSize: "large"},
			want:  ChangeLargeRefactor,
		},
		{
			name:  "symbol_removal_flag_overrides_complexity",
			phase: PhaseSpec{Complexity: "low", AllowSymbolRemoval: true},
			want:  ChangeLargeRefactor,
		},
		{
			name:       "lockfile_in_scope_forces_large",
			phase:      PhaseSpec{Complexity: "low"},
			scopePaths: []string{"package-lock.json"},
			want:       ChangeLargeRefactor,
		},
		{
			name:       "manifest_in_scope_forces_large",
			phase:      PhaseSpec{Complexity: "low"},
			scopePaths: []string{"backend/pyproject.toml"},
			want:       ChangeLargeRefactor,
		},
		{
			name:       "yaml_in_scope_forces_large",
			phase:      PhaseSpec{Complexity: "low"},
			scopePaths: []string{"deploy/stack.yml"},
			want:       ChangeLargeRefactor,
		},
		{
			name:       "packs_dir_forces_large",
			phase:      PhaseSpec{Complexity: "low"},
			scopePaths: []string{"data/packs/python/base.json"},
			want:       ChangeLargeRefactor,
		},
		{
			name:       "plain_source_scope_keeps_small",
			phase:      PhaseSpec{Complexity: "low"},
			scopePaths: []string{"src/util/strings.py"},
			want:       ChangeSmallFix,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.phase, tc.scopePaths))
		})
	}
}

func TestChangeClassifier_ChurnThreshold(t *testing.T) {
	c := NewChangeClassifier()

	assert.Equal(t, 30.0, c.ChurnThreshold(ChangeSmallFix))
	assert.Equal(t, 80.0, c.ChurnThreshold(ChangeLargeRefactor))
}
