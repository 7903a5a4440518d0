// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scope

import "testing"

func TestGuard_Check_ScopeAndProtected(t *testing.T) {
	guard := NewGuard([]string{"src/"}, []string{"src/core/"})

	t.Run("protected_inside_scope_rejected", func(t *testing.T) {
		decision := guard.Check([]string{"src/core/x.py"})
		if decision.OK {
			t.Fatal("expected rejection for protected path")
		}
		if got := decision.Violations[0].Reason; got != ReasonProtected {
			t.Errorf("reason = %q, want %q", got, ReasonProtected)
		}
	})

	t.Run("in_scope_allowed", func(t *testing.T) {
		decision := guard.Check([]string{"src/utils.py"})
		if !decision.OK {
			t.Fatalf("expected allow, got violations %v", decision.Violations)
		}
	})

	t.Run("outside_scope_rejected", func(t *testing.T) {
		decision := guard.Check([]string{"docs/readme.md"})
		if decision.OK {
			t.Fatal("expected rejection for out-of-scope path")
		}
		if got := decision.Violations[0].Reason; got != ReasonOutsideScope {
			t.Errorf("reason = %q, want %q", got, ReasonOutsideScope)
		}
	})
}

func TestGuard_Check_ProtectionPrecedence(t *testing.T) {
	// The protected root is also listed in scope; protection must win.
	guard := NewGuard([]string{"src/core/", "src/"}, []string{"src/core/"})

	decision := guard.Check([]string{"src/core/engine.py"})
	if decision.OK {
		t.Fatal("protected path listed in scope must still be rejected")
	}
	if got := decision.Violations[0].Reason; got != ReasonProtected {
		t.Errorf("reason = %q, want %q", got, ReasonProtected)
	}
	if !decision.HasProtected() {
		t.Error("HasProtected() = false, want true")
	}
}

func TestGuard_Check_EmptyScopeUnrestricted(t *testing.T) {
	guard := NewGuard(nil, []string{".git"})

	decision := guard.Check([]string{"anything/goes.txt", "deep/nested/file.go"})
	if !decision.OK {
		t.Fatalf("empty scope should allow non-protected paths, got %v", decision.Violations)
	}

	decision = guard.Check([]string{".git/config"})
	if decision.OK {
		t.Fatal("protected path must be rejected even with empty scope")
	}
}

func TestGuard_Check_SeparatorNormalization(t *testing.T) {
	guard := NewGuard([]string{"src"}, []string{"src/core"})

	decision := guard.Check([]string{`src\core\x.py`})
	if decision.OK {
		t.Fatal("backslash path under protected root must be rejected")
	}

	decision = guard.Check([]string{`src\utils.py`})
	if !decision.OK {
		t.Fatalf("backslash path in scope should be allowed, got %v", decision.Violations)
	}
}

func TestGuard_Check_WholeSetDecision(t *testing.T) {
	guard := NewGuard([]string{"src"}, nil)

	decision := guard.Check([]string{"src/ok.go", "vendor/bad.go", "src/autopack/core.go"})
	if decision.OK {
		t.Fatal("expected violations")
	}
	if len(decision.Violations) != 2 {
		t.Fatalf("violations = %d, want 2: %v", len(decision.Violations), decision.Violations)
	}
}

func TestGuard_Check_ExactFileEntry(t *testing.T) {
	guard := NewGuard([]string{"Makefile", "src"}, nil)

	if decision := guard.Check([]string{"Makefile"}); !decision.OK {
		t.Fatalf("exact file entry should match, got %v", decision.Violations)
	}
	// Prefix match must be segment-aware: "Makefile.bak" is not under "Makefile".
	if decision := guard.Check([]string{"Makefile.bak"}); decision.OK {
		t.Fatal("sibling with shared prefix must not match scope entry")
	}
}
