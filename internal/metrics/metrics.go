// Package metrics provides a centralized interface for collecting
// application metrics, built on Prometheus. It tracks:
//   - Tool calls started and settled, by tool name and outcome
//   - Cancellations of in-flight tool futures
//   - Context-offload events and bytes written
//   - Sub-agent runs, by type and action
//   - LLM request latency and token usage, by provider and model
//
// Usage:
//
//	m := metrics.New()
//	m.ToolCallStarted("Bash")
//	m.ToolCallSettled("Bash", "ok", elapsed.Seconds())
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the agent core registers.
type Metrics struct {
	// ToolCallsStarted counts tool-call futures dispatched, by tool name.
	ToolCallsStarted *prometheus.CounterVec

	// ToolCallsSettled counts tool-call futures that finished, by tool
	// name and outcome (ok|error|cancelled).
	ToolCallsSettled *prometheus.CounterVec

	// ToolCallDuration measures wall-clock time from dispatch to settle.
	// Labels: tool_name
	ToolCallDuration *prometheus.HistogramVec

	// ToolCallsCancelled counts futures cancelled before completion, by
	// tool name (distinct from ToolCallsSettled{outcome=cancelled},
	// which fires after Cancel's goroutine actually observes it).
	ToolCallsCancelled *prometheus.CounterVec

	// OffloadEvents counts context-window offloads, by trigger
	// (threshold|manual).
	OffloadEvents *prometheus.CounterVec

	// OffloadBytes tracks bytes written to the offload blob store.
	OffloadBytes prometheus.Counter

	// SubAgentRuns counts sub-agent invocations, by type and action.
	SubAgentRuns *prometheus.CounterVec

	// SubAgentDuration measures sub-agent wall-clock runtime.
	// Labels: type, action
	SubAgentDuration *prometheus.HistogramVec

	// LLMRequestDuration measures provider round-trip latency.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, kind (input|output)
	LLMTokensUsed *prometheus.CounterVec

	// AgentIterations counts completed agent-loop runs, by the stop reason
	// each run ended with (no_tool_calls|failure-threshold|iteration_cap,
	// or the reason a stop hook returned).
	AgentIterations *prometheus.CounterVec

	// RepetitionGuardTriggered counts sliding-window repeated-call
	// warnings injected into the transcript.
	RepetitionGuardTriggered prometheus.Counter
}

// New creates and registers every collector against the default registry.
// Call once at process startup.
func New() *Metrics {
	return &Metrics{
		ToolCallsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_tool_calls_started_total",
				Help: "Total number of tool-call futures dispatched, by tool name",
			},
			[]string{"tool_name"},
		),

		ToolCallsSettled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_tool_calls_settled_total",
				Help: "Total number of tool-call futures that settled, by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		ToolCallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_tool_call_duration_seconds",
				Help:    "Duration from tool-call dispatch to settle, in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"tool_name"},
		),

		ToolCallsCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_tool_calls_cancelled_total",
				Help: "Total number of tool-call futures cancelled before completion",
			},
			[]string{"tool_name"},
		),

		OffloadEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_offload_events_total",
				Help: "Total number of context-window offload events, by trigger",
			},
			[]string{"trigger"},
		),

		OffloadBytes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "synapse_offload_bytes_total",
				Help: "Total bytes written to the offload blob store",
			},
		),

		SubAgentRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_subagent_runs_total",
				Help: "Total number of sub-agent invocations, by type and action",
			},
			[]string{"type", "action"},
		),

		SubAgentDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_subagent_duration_seconds",
				Help:    "Sub-agent wall-clock runtime in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"type", "action"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synapse_llm_request_duration_seconds",
				Help:    "Duration of LLM provider requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_llm_tokens_total",
				Help: "Total tokens consumed, by provider, model, and kind",
			},
			[]string{"provider", "model", "kind"},
		),

		AgentIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synapse_agent_iterations_total",
				Help: "Total agent-loop runs completed, by stop reason",
			},
			[]string{"stop_reason"},
		),

		RepetitionGuardTriggered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "synapse_repetition_guard_triggered_total",
				Help: "Total number of sliding-window repeated-call warnings injected",
			},
		),
	}
}

// ToolCallStarted records a tool-call dispatch.
func (m *Metrics) ToolCallStarted(toolName string) {
	m.ToolCallsStarted.WithLabelValues(toolName).Inc()
}

// ToolCallSettled records a tool-call completion and its duration.
func (m *Metrics) ToolCallSettled(toolName, outcome string, durationSeconds float64) {
	m.ToolCallsSettled.WithLabelValues(toolName, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// ToolCallCancelled records a future cancelled before it settled.
func (m *Metrics) ToolCallCancelled(toolName string) {
	m.ToolCallsCancelled.WithLabelValues(toolName).Inc()
}

// RecordOffload records a context-offload event and the bytes it wrote.
func (m *Metrics) RecordOffload(trigger string, bytes int) {
	m.OffloadEvents.WithLabelValues(trigger).Inc()
	m.OffloadBytes.Add(float64(bytes))
}

// RecordSubAgentRun records a completed sub-agent invocation.
func (m *Metrics) RecordSubAgentRun(kind, action string, durationSeconds float64) {
	m.SubAgentRuns.WithLabelValues(kind, action).Inc()
	m.SubAgentDuration.WithLabelValues(kind, action).Observe(durationSeconds)
}

// RecordLLMRequest records provider latency and token usage for one request.
func (m *Metrics) RecordLLMRequest(provider, model string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordIteration records one agent-loop run ending with stopReason.
func (m *Metrics) RecordIteration(stopReason string) {
	m.AgentIterations.WithLabelValues(stopReason).Inc()
}

// RecordRepetitionGuard records one sliding-window repeated-call warning.
func (m *Metrics) RecordRepetitionGuard() {
	m.RepetitionGuardTriggered.Inc()
}
