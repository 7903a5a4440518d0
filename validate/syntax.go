// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxValidator parses patched source content and rejects syntax
// errors before the patch reaches disk.
//
// Thread Safety: Safe for concurrent use. Parsers are created per-call
// to avoid sharing issues.
type SyntaxValidator struct{}

// NewSyntaxValidator creates a syntax validator.
func NewSyntaxValidator() *SyntaxValidator {
	return &SyntaxValidator{}
}

// Validate parses content with the grammar matching the file extension.
//
// # Description
//
// Files in languages without a wired grammar pass trivially; this is a
// best-effort guard against committing obviously broken source, not a
// compiler.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - content: The candidate (post-patch) file content.
//   - filePath: Drives language detection.
//
// # Outputs
//
//   - *Result: Valid flag with the first error's line number.
//   - error: Non-nil if the parser itself fails.
func (v *SyntaxValidator) Validate(ctx context.Context, content []byte, filePath string) (*Result, error) {
	lang := languageFor(filePath)
	if lang == nil {
		return &Result{Valid: true}, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if errNode := firstErrorNode(root); errNode != nil {
		line := int(errNode.StartPoint().Row) + 1
		return &Result{
			Valid:  false,
			Errors: []string{fmt.Sprintf("syntax error at %s:%d", filePath, line)},
		}, nil
	}
	return &Result{Valid: true}, nil
}

// languageFor maps a file extension to its grammar, nil when the
// language is not wired.
func languageFor(filePath string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".go":
		return golang.GetLanguage()
	case ".py", ".pyi":
		return python.GetLanguage()
	default:
		return nil
	}
}

// firstErrorNode finds the first error or missing node in the tree.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		if errNode := firstErrorNode(node.Child(int(i))); errNode != nil {
			return errNode
		}
	}
	return nil
}
