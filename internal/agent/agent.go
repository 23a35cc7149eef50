package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go-triage/internal/config"
	"go-triage/internal/fetcher"
	"go-triage/internal/knowledge"
	"go-triage/internal/tools"
)

const (
	maxErrorPatterns = 10
	defaultTopK      = 5
)

// KnowledgeBase is the part of knowledge.Base the agent uses.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, k int) ([]knowledge.Result, error)
	Add(ctx context.Context, content string, metadata map[string]any) error
}

// LinkFetcher is the part of fetcher.Fetcher the agent uses.
type LinkFetcher interface {
	FetchFromInput(ctx context.Context, text string) []fetcher.FetchResult
}

// Deps are the components an Agent is built from. Fetcher may be nil.
type Deps struct {
	Model     ChatModel
	Knowledge KnowledgeBase
	Tools     *tools.Registry
	Fetcher   LinkFetcher
}

// Agent answers troubleshooting questions.
type Agent struct {
	cfg       config.AgentConfig
	topK      int
	model     ChatModel
	knowledge KnowledgeBase
	tools     *tools.Registry
	fetcher   LinkFetcher
	engine    *Engine
	conv      *Conversation
}

func New(deps Deps, cfg *config.Config) (*Agent, error) {
	if deps.Model == nil {
		return nil, errors.New("agent needs a chat model")
	}
	if deps.Knowledge == nil {
		return nil, errors.New("agent needs a knowledge base")
	}
	if deps.Tools == nil {
		deps.Tools = tools.NewRegistry(nil)
	}
	topK := cfg.Knowledge.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	a := &Agent{
		cfg:       cfg.Agent,
		topK:      topK,
		model:     deps.Model,
		knowledge: deps.Knowledge,
		tools:     deps.Tools,
		fetcher:   deps.Fetcher,
		engine:    NewEngine(deps.Model, deps.Tools, cfg.Agent.MaxReasoningSteps),
	}
	a.conv = a.NewConversation()
	return a, nil
}

// NewConversation returns an empty conversation capped per config.
func (a *Agent) NewConversation() *Conversation {
	return NewConversation(a.cfg.MaxConversationTurns)
}

// Conversation returns the agent's default conversation.
func (a *Agent) Conversation() *Conversation { return a.conv }

func (a *Agent) Tools() *tools.Registry { return a.tools }

// Chat answers query on the default conversation.
func (a *Agent) Chat(ctx context.Context, query string, baseContext map[string]any) (*ChatResult, error) {
	return a.ChatIn(ctx, a.conv, query, baseContext, nil)
}

// ChatIn answers query within conv. On failure it returns a result carrying
// the error and an apology as the response, together with the error.
func (a *Agent) ChatIn(ctx context.Context, conv *Conversation, query string, baseContext map[string]any, observe Observer) (*ChatResult, error) {
	log.Printf("[Agent] Processing query: %s", preview(query, 100))

	res, err := a.chat(ctx, conv, query, baseContext, observe)
	if err != nil {
		log.Printf("[Agent] Query failed: %v", err)
		emit(observe, Event{Stage: StageError, Message: err.Error()})
		return &ChatResult{
			Query:    query,
			Error:    err.Error(),
			Response: fmt.Sprintf("Sorry, something went wrong while handling your question: %v", err),
		}, err
	}
	emit(observe, Event{Stage: StageDone, Message: "answer ready"})
	return res, nil
}

func (a *Agent) chat(ctx context.Context, conv *Conversation, query string, baseContext map[string]any, observe Observer) (*ChatResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("empty query")
	}

	var fetched []fetcher.FetchResult
	if a.fetcher != nil {
		emit(observe, Event{Stage: StageFetching, Message: "looking for links in the question"})
		fetched = a.fetcher.FetchFromInput(ctx, query)
	}
	history := conv.Recent(a.historyWindow())
	ectx := BuildEnhancedContext(query, baseContext, fetched, history)
	if len(fetched) > 0 {
		emit(observe, Event{Stage: StageFetched, Message: fmt.Sprintf("fetched %d of %d sources",
			ectx.FetchedDataSummary.SuccessfulFetches, ectx.FetchedDataSummary.TotalSources), Data: ectx.FetchedDataSummary})
	}

	emit(observe, Event{Stage: StageKnowledge, Message: "searching the knowledge base"})
	found, err := a.knowledge.Search(ctx, query, a.topK)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}

	emit(observe, Event{Stage: StageReasoning, Message: "analyzing the problem"})
	reasoning, err := a.engine.Analyze(ctx, query, history, ectx, found, observe)
	if err != nil {
		return nil, err
	}

	emit(observe, Event{Stage: StageAnswering, Message: "writing the answer"})
	prompt, err := ResponsePrompt(query, ectx, reasoning)
	if err != nil {
		return nil, err
	}
	response, err := a.model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	conv.Append(query, response)

	return &ChatResult{
		Query:             query,
		Response:          response,
		FetchedLogs:       fetched,
		Context:           ectx,
		Reasoning:         reasoning,
		RelevantKnowledge: found,
	}, nil
}

func (a *Agent) historyWindow() int {
	if a.cfg.HistoryWindow > 0 {
		return a.cfg.HistoryWindow
	}
	return 5
}

// AddKnowledge stores content in the knowledge base. Nil metadata gets the
// knowledge base's defaults.
func (a *Agent) AddKnowledge(ctx context.Context, content string, metadata map[string]any) error {
	return a.knowledge.Add(ctx, content, metadata)
}

// RegisterTool makes fn callable by the model.
func (a *Agent) RegisterTool(name, description string, parameters map[string]any, fn tools.Func) error {
	return a.tools.RegisterFunc(name, description, parameters, fn)
}

func (a *Agent) History() []Turn { return a.conv.History() }

func (a *Agent) ClearHistory() {
	a.conv.Clear()
	log.Printf("[Agent] Conversation history cleared")
}

// BuildEnhancedContext assembles what is known about query before
// reasoning. history is used as given.
func BuildEnhancedContext(query string, baseContext map[string]any, fetched []fetcher.FetchResult, history []Turn) *EnhancedContext {
	if baseContext == nil {
		baseContext = map[string]any{}
	}
	if history == nil {
		history = []Turn{}
	}
	ectx := &EnhancedContext{
		OriginalQuery:       query,
		BaseContext:         baseContext,
		FetchedDataSummary:  SummarizeFetched(fetched),
		SystemInfo:          map[string]any{},
		ConversationHistory: history,
	}
	if len(fetched) > 0 {
		ectx.LogAnalysis = AnalyzeFetched(fetched)
	}
	return ectx
}

// SummarizeFetched counts what was fetched and lists every source.
func SummarizeFetched(fetched []fetcher.FetchResult) FetchSummary {
	s := FetchSummary{TotalSources: len(fetched), Sources: []SourceSummary{}}
	for _, fr := range fetched {
		if !fr.Success || fr.Data == nil {
			s.FailedFetches++
			msg := fr.Error
			if msg == "" {
				msg = "unknown error"
			}
			s.Sources = append(s.Sources, SourceSummary{URL: fr.Link.URL, Type: string(fr.Link.Type), Error: msg})
			continue
		}

		doc := fr.Data
		s.SuccessfulFetches++
		s.TotalContentSize += doc.Size
		if doc.Parsed.Log != nil {
			s.ErrorCount += doc.Parsed.Log.ErrorCount
			s.WarningCount += doc.Parsed.Log.WarningCount
		}
		contentType := doc.ContentType
		if contentType == "" {
			contentType = "unknown"
		}
		s.Sources = append(s.Sources, SourceSummary{
			URL:         fr.Link.URL,
			Type:        string(fr.Link.Type),
			Size:        doc.Size,
			ContentType: contentType,
			Summary:     doc.Parsed.Summary,
		})
	}
	return s
}

// AnalyzeFetched collects key points, recurring error words and
// recommendations from the successfully fetched sources.
func AnalyzeFetched(fetched []fetcher.FetchResult) *LogAnalysis {
	analysis := &LogAnalysis{
		KeyFindings:     []string{},
		ErrorPatterns:   []ErrorPattern{},
		Timeline:        []string{},
		Recommendations: []string{},
	}

	var errorLines, warningLines []string
	for _, fr := range fetched {
		if !fr.Success || fr.Data == nil {
			continue
		}
		analysis.KeyFindings = append(analysis.KeyFindings, fr.Data.Parsed.KeyPoints...)
		if fr.Data.Parsed.Log == nil {
			continue
		}
		for _, e := range fr.Data.Parsed.Log.Entries {
			if e.IsError {
				errorLines = append(errorLines, e.RawLine)
			} else if e.IsWarning {
				warningLines = append(warningLines, e.RawLine)
			}
		}
	}

	if len(errorLines) > 0 {
		analysis.ErrorPatterns = ErrorPatterns(errorLines)
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("found %d errors, handle these first", len(errorLines)))
	}
	if len(warningLines) > 0 {
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("found %d warnings, worth a look", len(warningLines)))
	}
	return analysis
}

// ErrorPatterns counts lowercased words longer than three characters that
// are not plain numbers, returning the ten most frequent. Ties keep first
// appearance order.
func ErrorPatterns(lines []string) []ErrorPattern {
	counts := map[string]int{}
	var order []string
	for _, line := range lines {
		for _, word := range strings.Fields(strings.ToLower(line)) {
			if utf8.RuneCountInString(word) <= 3 || isDigits(word) {
				continue
			}
			if counts[word] == 0 {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxErrorPatterns {
		order = order[:maxErrorPatterns]
	}
	patterns := make([]ErrorPattern, 0, len(order))
	for _, w := range order {
		patterns = append(patterns, ErrorPattern{Pattern: w, Count: counts[w]})
	}
	return patterns
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// ResponsePrompt builds the prompt for the final answer.
func ResponsePrompt(query string, ectx *EnhancedContext, reasoning *Reasoning) (string, error) {
	summary, err := json.MarshalIndent(ectx.FetchedDataSummary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode fetch summary: %w", err)
	}
	analysis := []byte("{}")
	if ectx.LogAnalysis != nil {
		if analysis, err = json.MarshalIndent(ectx.LogAnalysis, "", "  "); err != nil {
			return "", fmt.Errorf("encode log analysis: %w", err)
		}
	}
	trace, err := json.MarshalIndent(reasoning, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode reasoning: %w", err)
	}

	return fmt.Sprintf(`You are an expert at troubleshooting production engineering problems. Answer the user's question using the information below.

User question: %s

Summary of fetched logs:
%s

Log analysis:
%s

Reasoning:
%s

Give a detailed analysis and recommendations:
1. Problem analysis: based on the fetched logs and context
2. Root cause: the likely source of the problem
3. Solution: concrete steps to fix it
4. Prevention: how to avoid similar problems

Be precise and ground the answer in the actual log data.`, query, summary, analysis, trace), nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
