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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for apply operations.
var (
	tracer = otel.Tracer("autopack.apply")
	meter  = otel.Meter("autopack.apply")
)

// Metrics for apply operations.
var (
	applyLatency   metric.Float64Histogram
	applyTotal     metric.Int64Counter
	violationTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		applyLatency, err = meter.Float64Histogram(
			"apply_duration_seconds",
			metric.WithDescription("Duration of one apply attempt"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		applyTotal, err = meter.Int64Counter(
			"apply_total",
			metric.WithDescription("Total number of apply attempts"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		violationTotal, err = meter.Int64Counter(
			"apply_scope_violations_total",
			metric.WithDescription("Total number of apply attempts rejected by the scope guard"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startApplySpan creates a span for one apply attempt.
func startApplySpan(ctx context.Context, kind ProposalKind, phaseID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator.Apply",
		trace.WithAttributes(
			attribute.String("apply.kind", string(kind)),
			attribute.String("apply.phase_id", phaseID),
		),
	)
}

// setApplySpanResult sets the result attributes on an apply span.
func setApplySpanResult(span trace.Span, outcome *Outcome) {
	span.SetAttributes(
		attribute.Bool("apply.success", outcome.Success),
		attribute.String("apply.mode", string(outcome.Mode)),
		attribute.Int("apply.files_modified", len(outcome.FilesModified)),
	)
}

// recordApplyMetrics records metrics for one apply attempt.
func recordApplyMetrics(ctx context.Context, kind ProposalKind, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.Bool("success", success),
	)

	applyLatency.Record(ctx, duration.Seconds(), attrs)
	applyTotal.Add(ctx, 1, attrs)
}

// recordViolation counts one scope-guard rejection.
func recordViolation(ctx context.Context, reason string) {
	if err := initMetrics(); err != nil {
		return
	}
	violationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
