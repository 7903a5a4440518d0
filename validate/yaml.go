// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate provides the format and syntax validators the apply
// orchestrator runs before any diff touches disk.
//
// # Thread Safety
//
// Validators are stateless; all methods are safe for concurrent use.
package validate

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Result is the outcome of validating one file's content.
type Result struct {
	// Valid indicates the content passed validation.
	Valid bool `json:"valid"`

	// Errors are blocking problems.
	Errors []string `json:"errors,omitempty"`

	// Warnings are advisory findings.
	Warnings []string `json:"warnings,omitempty"`
}

// ComposeValidator validates YAML and docker-compose style files.
type ComposeValidator struct{}

// NewComposeValidator creates a compose/YAML validator.
func NewComposeValidator() *ComposeValidator {
	return &ComposeValidator{}
}

// Validate parses content as YAML and, for compose files, checks the
// structural essentials.
//
// # Inputs
//
//   - content: The candidate file content.
//   - filePath: Used to decide whether compose-specific checks apply.
//
// # Outputs
//
//   - *Result: Valid flag plus errors and warnings.
func (v *ComposeValidator) Validate(content, filePath string) *Result {
	result := &Result{Valid: true}

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("invalid YAML: %v", err))
		return result
	}

	if !isComposeFile(filePath) {
		return result
	}

	services, ok := doc["services"]
	if !ok {
		result.Valid = false
		result.Errors = append(result.Errors, "compose file has no services section")
		return result
	}
	serviceMap, ok := services.(map[string]any)
	if !ok || len(serviceMap) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "compose services section is empty")
		return result
	}

	if _, ok := doc["version"]; ok {
		result.Warnings = append(result.Warnings, "compose version key is obsolete")
	}

	for name, svc := range serviceMap {
		svcDef, ok := svc.(map[string]any)
		if !ok {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("service %q is not a mapping", name))
			continue
		}
		_, hasImage := svcDef["image"]
		_, hasBuild := svcDef["build"]
		if !hasImage && !hasBuild {
			result.Warnings = append(result.Warnings, fmt.Sprintf("service %q has neither image nor build", name))
		}
	}

	return result
}

// IsYAMLPath reports whether the path looks like a YAML document.
func IsYAMLPath(filePath string) bool {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filePath, "\\", "/")))
	return ext == ".yaml" || ext == ".yml"
}

// isComposeFile reports whether the path is a docker-compose style
// file by name.
func isComposeFile(filePath string) bool {
	base := strings.ToLower(path.Base(strings.ReplaceAll(filePath, "\\", "/")))
	if !IsYAMLPath(base) {
		return false
	}
	name := strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	return name == "compose" || strings.HasPrefix(name, "docker-compose")
}
