// Package agent runs the troubleshooting loop: fetch what the user links to,
// look up known problems, let the model call tools, then write the answer.
package agent

import (
	"go-triage/internal/fetcher"
	"go-triage/internal/knowledge"
	"go-triage/internal/tools"
)

// Step names recorded in Reasoning.Steps.
const (
	StepKnowledgeSearch = "knowledge_search"
	stepToolPrefix      = "tool_execution_"
	stepReasonPrefix    = "reasoning_"
)

// ReasoningStep is one entry of the reasoning trace. Which fields are set
// depends on Step.
type ReasoningStep struct {
	Step        string             `json:"step"`
	Description string             `json:"description,omitempty"`
	Results     []knowledge.Result `json:"results,omitempty"`
	Response    string             `json:"response,omitempty"`
	Tool        string             `json:"tool,omitempty"`
	Arguments   map[string]any     `json:"arguments,omitempty"`
	Result      *tools.ToolResult  `json:"result,omitempty"`
}

// IsToolExecution reports whether the step ran a tool.
func (s ReasoningStep) IsToolExecution() bool {
	return s.Tool != "" && s.Result != nil
}

// Reasoning is the outcome of Engine.Analyze.
type Reasoning struct {
	Steps         []ReasoningStep    `json:"reasoning_steps"`
	FinalResponse string             `json:"final_response"`
	KnowledgeUsed []knowledge.Result `json:"knowledge_used"`
}

// ToolSteps returns only the steps that executed a tool.
func (r *Reasoning) ToolSteps() []ReasoningStep {
	if r == nil {
		return nil
	}
	var out []ReasoningStep
	for _, s := range r.Steps {
		if s.IsToolExecution() {
			out = append(out, s)
		}
	}
	return out
}

// Turn is one question and answer of a conversation.
type Turn struct {
	Timestamp string `json:"timestamp"`
	Query     string `json:"query"`
	Response  string `json:"response"`
}

// SourceSummary describes one fetched source. Error is set for failures,
// the other fields for successes.
type SourceSummary struct {
	URL         string `json:"url"`
	Type        string `json:"type"`
	Size        int    `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Error       string `json:"error,omitempty"`
}

// FetchSummary aggregates everything fetched for a query.
type FetchSummary struct {
	TotalSources      int             `json:"total_sources"`
	SuccessfulFetches int             `json:"successful_fetches"`
	FailedFetches     int             `json:"failed_fetches"`
	TotalContentSize  int             `json:"total_content_size"`
	ErrorCount        int             `json:"error_count"`
	WarningCount      int             `json:"warning_count"`
	Sources           []SourceSummary `json:"sources"`
}

// ErrorPattern is a word that recurs across error lines.
type ErrorPattern struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// LogAnalysis is derived from the parsed fetched logs.
type LogAnalysis struct {
	KeyFindings     []string       `json:"key_findings"`
	ErrorPatterns   []ErrorPattern `json:"error_patterns"`
	Timeline        []string       `json:"timeline"`
	Recommendations []string       `json:"recommendations"`
}

// EnhancedContext is what the agent knows about a query before reasoning.
type EnhancedContext struct {
	OriginalQuery       string         `json:"original_query"`
	BaseContext         map[string]any `json:"base_context"`
	FetchedDataSummary  FetchSummary   `json:"fetched_data_summary"`
	SystemInfo          map[string]any `json:"system_info"`
	ConversationHistory []Turn         `json:"conversation_history"`
	LogAnalysis         *LogAnalysis   `json:"log_analysis,omitempty"`
}

// ChatResult is returned by Agent.Chat. On failure only Query, Error and
// Response are set.
type ChatResult struct {
	Query             string                `json:"query"`
	Response          string                `json:"response"`
	Error             string                `json:"error,omitempty"`
	FetchedLogs       []fetcher.FetchResult `json:"fetched_logs,omitempty"`
	Context           *EnhancedContext      `json:"context,omitempty"`
	Reasoning         *Reasoning            `json:"reasoning,omitempty"`
	RelevantKnowledge []knowledge.Result    `json:"relevant_knowledge,omitempty"`
}

// Stage names sent to an Observer.
const (
	StageFetching  = "fetching"
	StageFetched   = "fetched"
	StageKnowledge = "knowledge"
	StageReasoning = "reasoning"
	StageTool      = "tool"
	StageAnswering = "answering"
	StageDone      = "done"
	StageError     = "error"
)

// Event reports progress of a chat to a streaming surface.
type Event struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Observer receives progress events. It is called synchronously and must
// not block.
type Observer func(Event)
