// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// autopack-apply applies proposed code changes (unified diffs or
// structured edit plans) to a workspace under scope enforcement.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hshk99/Autopack-sub017/apply"
	"github.com/hshk99/Autopack-sub017/edit"
	"github.com/hshk99/Autopack-sub017/patch"
	"github.com/hshk99/Autopack-sub017/pkg/logging"
	"github.com/hshk99/Autopack-sub017/validate"
)

var (
	workspace  string
	scopePaths []string
	phaseID    string
	logJSON    bool
	logDir     string
	dryRun     bool
	backups    bool

	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "autopack-apply",
		Short: "Apply proposed code changes to a workspace under scope enforcement",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.New(logging.Config{
				Level:   logging.LevelInfo,
				LogDir:  logDir,
				Service: "autopack-apply",
				JSON:    logJSON,
			})
			slog.SetDefault(logger.Slog())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}

	applyDiffCmd = &cobra.Command{
		Use:   "apply-diff [diff-file|-]",
		Short: "Apply a unified diff through the full validation pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runApplyDiff,
	}

	applyPlanCmd = &cobra.Command{
		Use:   "apply-plan [plan-file|-]",
		Short: "Apply a structured edit plan (JSON) through the full validation pipeline",
		Args:  cobra.ExactArgs(1),
		RunE:  runApplyPlan,
	}

	checkCmd = &cobra.Command{
		Use:   "check [diff-file|-]",
		Short: "Dry-run a diff against the workspace without mutating it",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}

	statsCmd = &cobra.Command{
		Use:   "stats [diff-file|-]",
		Short: "Print files-affected and line counts for a diff",
		Args:  cobra.ExactArgs(1),
		RunE:  runStats,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace root to apply against")
	rootCmd.PersistentFlags().StringSliceVar(&scopePaths, "scope", nil, "allowed path prefixes (empty means unrestricted)")
	rootCmd.PersistentFlags().StringVar(&phaseID, "phase-id", "cli", "phase identifier for logs and summaries")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "", "also write JSON logs to this directory")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "validate and stage without writing disk")
	rootCmd.PersistentFlags().BoolVar(&backups, "backups", false, "keep .orig backups of files changed by edit plans")

	rootCmd.AddCommand(applyDiffCmd, applyPlanCmd, checkCmd, statsCmd)
}

// readInput loads the argument file, or stdin when the argument is "-".
func readInput(arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", arg, err)
	}
	return string(data), nil
}

func newOrchestrator() (*apply.Orchestrator, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, err
	}
	return apply.New(apply.Config{
		Workspace: abs,
		DryRun:    dryRun,
		Backups:   backups,
		Logger:    slog.Default(),
		Format:    validate.NewComposeValidator(),
		Syntax:    validate.NewSyntaxValidator(),
	})
}

func runProposal(cmd *cobra.Command, proposal apply.Proposal) error {
	o, err := newOrchestrator()
	if err != nil {
		return err
	}

	outcome, err := o.Apply(cmd.Context(), proposal, apply.PhaseContext{
		PhaseID:    phaseID,
		ScopePaths: scopePaths,
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))

	if !outcome.Success {
		return fmt.Errorf("apply failed: %s", outcome.Message)
	}
	return nil
}

func runApplyDiff(cmd *cobra.Command, args []string) error {
	diffText, err := readInput(args[0])
	if err != nil {
		return err
	}
	return runProposal(cmd, apply.NewDiffProposal(diffText))
}

func runApplyPlan(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return err
	}

	var plan edit.Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return fmt.Errorf("decoding edit plan: %w", err)
	}
	return runProposal(cmd, apply.NewPlanProposal(&plan))
}

func runCheck(cmd *cobra.Command, args []string) error {
	diffText, err := readInput(args[0])
	if err != nil {
		return err
	}

	abs, err := filepath.Abs(workspace)
	if err != nil {
		return err
	}
	engine, err := patch.NewEngine(abs, slog.Default())
	if err != nil {
		return err
	}

	result, err := engine.Apply(cmd.Context(), diffText, patch.ApplyOptions{CheckOnly: true})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))

	if !result.Success {
		return fmt.Errorf("diff does not apply: %s", result.Message)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	diffText, err := readInput(args[0])
	if err != nil {
		return err
	}

	stats, err := patch.ComputeStats(diffText)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
