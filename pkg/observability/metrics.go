// Copyright 2026 The Conductor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability wires prometheus metrics and OpenTelemetry
// tracing. Everything degrades to no-ops when disabled.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the prometheus exporter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Metrics records the platform's operational counters. A nil or empty
// *PrometheusMetrics is a valid no-op implementation.
type Metrics interface {
	ObserveToolCall(toolName string, success bool, duration time.Duration)
	ObserveLLMCall(model string, inputTokens, outputTokens int, success bool, duration time.Duration)
	ObserveTask(agentID, finalState string, duration time.Duration)
}

// PrometheusMetrics exports counters and histograms through the otel
// prometheus bridge. The zero value is a no-op.
type PrometheusMetrics struct {
	toolDuration metric.Float64Histogram
	toolCalls    metric.Int64Counter
	toolErrors   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	taskDuration metric.Float64Histogram
	taskTotal    metric.Int64Counter
}

// InitMetrics builds the prometheus-backed metrics. The exporter
// registers with the default prometheus registry, served by the
// server's /metrics handler.
func InitMetrics(_ context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meter := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	).Meter("conductor")

	m := &PrometheusMetrics{}
	for _, inst := range []struct {
		hist *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.toolDuration, "conductor_tool_call_duration_seconds", "Tool call duration in seconds"},
		{&m.llmDuration, "conductor_llm_request_duration_seconds", "LLM request duration in seconds"},
		{&m.taskDuration, "conductor_task_duration_seconds", "Task duration in seconds"},
	} {
		*inst.hist, err = meter.Float64Histogram(inst.name, metric.WithDescription(inst.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", inst.name, err)
		}
	}
	for _, inst := range []struct {
		counter *metric.Int64Counter
		name    string
		desc    string
	}{
		{&m.toolCalls, "conductor_tool_calls_total", "Total tool calls"},
		{&m.toolErrors, "conductor_tool_errors_total", "Total failed tool calls"},
		{&m.llmInputTokens, "conductor_llm_tokens_input_total", "Total input tokens sent to the LLM"},
		{&m.llmOutputTokens, "conductor_llm_tokens_output_total", "Total output tokens from the LLM"},
		{&m.llmErrors, "conductor_llm_errors_total", "Total failed LLM requests"},
		{&m.taskTotal, "conductor_tasks_total", "Total tasks processed"},
	} {
		*inst.counter, err = meter.Int64Counter(inst.name, metric.WithDescription(inst.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", inst.name, err)
		}
	}
	return m, nil
}

// ObserveToolCall records one tool invocation.
func (m *PrometheusMetrics) ObserveToolCall(toolName string, success bool, duration time.Duration) {
	if m == nil || m.toolCalls == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("tool", toolName))
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	if !success {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

// ObserveLLMCall records one LLM request.
func (m *PrometheusMetrics) ObserveLLMCall(model string, inputTokens, outputTokens int, success bool, duration time.Duration) {
	if m == nil || m.llmDuration == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if !success {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

// ObserveTask records one completed task.
func (m *PrometheusMetrics) ObserveTask(agentID, finalState string, duration time.Duration) {
	if m == nil || m.taskTotal == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("state", finalState),
	)
	m.taskTotal.Add(ctx, 1, attrs)
	m.taskDuration.Record(ctx, duration.Seconds(), attrs)
}
