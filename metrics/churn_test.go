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

func TestChurnCalculator_Calculate(t *testing.T) {
	calc := NewChurnCalculator()

	t.Run("both_empty", func(t *testing.T) {
		assert.Equal(t, 0.0, calc.Calculate("", ""))
	})

	t.Run("empty_old_is_full_churn", func(t *testing.T) {
		assert.Equal(t, 100.0, calc.Calculate("", "x\ny\n"))
	})

	t.Run("identical_content", func(t *testing.T) {
		assert.Equal(t, 0.0, calc.Calculate("a\nb\nc\n", "a\nb\nc\n"))
	})

	t.Run("single_line_replaced", func(t *testing.T) {
		old := "a\nb\nc\nd\n"
		updated := "a\nB\nc\nd\n"
		assert.InDelta(t, 25.0, calc.Calculate(old, updated), 0.001)
	})

	t.Run("replacement_counts_max_side", func(t *testing.T) {
		// One line replaced by three: max(1, 3) = 3 changed over 2 lines.
		old := "a\nb\n"
		updated := "a\nx\ny\nz\n"
		assert.InDelta(t, 150.0, calc.Calculate(old, updated), 0.001)
	})

	t.Run("pure_deletion", func(t *testing.T) {
		old := "a\nb\nc\nd\n"
		updated := "a\nd\n"
		assert.InDelta(t, 50.0, calc.Calculate(old, updated), 0.001)
	})

	t.Run("pure_insertion", func(t *testing.T) {
		old := "a\nb\n"
		updated := "a\nb\nc\n"
		assert.InDelta(t, 50.0, calc.Calculate(old, updated), 0.001)
	})
}

func TestChurnCalculator_IsHighChurn(t *testing.T) {
	calc := NewChurnCalculator()

	old := "a\nb\nc\nd\n"
	rewrite := "w\nx\ny\nz\n"

	assert.True(t, calc.IsHighChurn(old, rewrite, 0), "full rewrite exceeds default threshold")
	assert.False(t, calc.IsHighChurn(old, old, 0))
	assert.True(t, calc.IsHighChurn(old, "a\nb\nc\nD\n", 20.0))
	assert.False(t, calc.IsHighChurn(old, "a\nb\nc\nD\n", 30.0), "25% churn is not above 30%")
}

func TestSymbolValidator_Validate(t *testing.T) {
	v := NewSymbolValidator()

	t.Run("superset_reports_nothing", func(t *testing.T) {
		old := "def a():\n    pass\n"
		updated := "def a():\n    pass\n\ndef b():\n    pass\n"
		assert.Empty(t, v.Validate(old, updated, "mod.py"))
	})

	t.Run("removed_symbols_reported_sorted", func(t *testing.T) {
		old := "def zeta():\n    pass\n\nclass Alpha:\n    pass\n\ndef kept():\n    pass\n"
		updated := "def kept():\n    pass\n"
		assert.Equal(t, []string{"Alpha", "zeta"}, v.Validate(old, updated, "mod.py"))
	})

	t.Run("nested_definitions_ignored", func(t *testing.T) {
		old := "def outer():\n    def inner():\n        pass\n"
		updated := "def outer():\n    pass\n"
		assert.Empty(t, v.Validate(old, updated, "mod.py"), "indented defs are not top-level symbols")
	})

	t.Run("async_def_tracked", func(t *testing.T) {
		old := "async def fetch():\n    pass\n"
		assert.Equal(t, []string{"fetch"}, v.Validate(old, "", "mod.py"))
	})

	t.Run("non_python_skipped", func(t *testing.T) {
		old := "def looks_like_python():\n    pass\n"
		assert.Nil(t, v.Validate(old, "", "notes.md"))
		assert.Nil(t, v.Validate(old, "", "main.go"))
	})
}
