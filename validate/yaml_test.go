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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeValidator_PlainYAML(t *testing.T) {
	v := NewComposeValidator()

	t.Run("valid", func(t *testing.T) {
		result := v.Validate("key: value\nlist:\n  - a\n  - b\n", "config.yaml")
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("invalid", func(t *testing.T) {
		result := v.Validate("key: value\n  bad indent: [unclosed\n", "config.yaml")
		assert.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "invalid YAML")
	})
}

func TestComposeValidator_ComposeChecks(t *testing.T) {
	v := NewComposeValidator()

	t.Run("valid_compose", func(t *testing.T) {
		content := "services:\n  web:\n    image: nginx:latest\n"
		result := v.Validate(content, "docker-compose.yml")
		assert.True(t, result.Valid)
	})

	t.Run("missing_services", func(t *testing.T) {
		result := v.Validate("volumes:\n  data: {}\n", "docker-compose.yml")
		assert.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "services")
	})

	t.Run("empty_services", func(t *testing.T) {
		result := v.Validate("services: {}\n", "compose.yaml")
		assert.False(t, result.Valid)
	})

	t.Run("version_key_warns", func(t *testing.T) {
		content := "version: \"3\"\nservices:\n  web:\n    image: nginx\n"
		result := v.Validate(content, "docker-compose.yml")
		assert.True(t, result.Valid)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("service_without_image_warns", func(t *testing.T) {
		content := "services:\n  web:\n    ports:\n      - \"80:80\"\n"
		result := v.Validate(content, "docker-compose.yml")
		assert.True(t, result.Valid)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("compose_checks_skipped_for_plain_yaml", func(t *testing.T) {
		// No services key, but it's not a compose file.
		result := v.Validate("volumes:\n  data: {}\n", "k8s/deploy.yaml")
		assert.True(t, result.Valid)
	})
}

func TestIsYAMLPath(t *testing.T) {
	assert.True(t, IsYAMLPath("a/b/config.yaml"))
	assert.True(t, IsYAMLPath("stack.yml"))
	assert.True(t, IsYAMLPath(`deploy\stack.YML`))
	assert.False(t, IsYAMLPath("main.go"))
	assert.False(t, IsYAMLPath("yaml.txt"))
}

func TestSyntaxValidator(t *testing.T) {
	v := NewSyntaxValidator()
	ctx := context.Background()

	t.Run("valid_go", func(t *testing.T) {
		result, err := v.Validate(ctx, []byte("package main\n\nfunc main() {}\n"), "main.go")
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("broken_go", func(t *testing.T) {
		result, err := v.Validate(ctx, []byte("package main\n\nfunc main( {\n"), "main.go")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		require.NotEmpty(t, result.Errors)
		assert.Contains(t, result.Errors[0], "syntax error")
	})

	t.Run("valid_python", func(t *testing.T) {
		result, err := v.Validate(ctx, []byte("def a():\n    pass\n"), "mod.py")
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("broken_python", func(t *testing.T) {
		result, err := v.Validate(ctx, []byte("def a(:\n    pass\n"), "mod.py")
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("unknown_language_passes", func(t *testing.T) {
		result, err := v.Validate(ctx, []byte("anything at all"), "notes.txt")
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})
}
