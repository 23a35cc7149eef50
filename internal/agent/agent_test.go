package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go-triage/internal/config"
	"go-triage/internal/fetcher"
	"go-triage/internal/knowledge"
	"go-triage/internal/llm"
	"go-triage/internal/parser"
	"go-triage/internal/tools"
)

// scriptedModel replays chat replies in order and records what it was sent.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*llm.Reply
	chatErr error
	answer  string
	calls   [][]llm.Message
	prompts []string
}

func (m *scriptedModel) Chat(ctx context.Context, messages []llm.Message, specs []llm.ToolSpec) (*llm.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]llm.Message(nil), messages...))
	if m.chatErr != nil {
		return nil, m.chatErr
	}
	if len(m.replies) == 0 {
		return &llm.Reply{Content: "no more script"}, nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

func (m *scriptedModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.answer, nil
}

type staticKnowledge struct {
	results []knowledge.Result
	err     error
	added   []string
}

func (k *staticKnowledge) Search(ctx context.Context, query string, n int) ([]knowledge.Result, error) {
	if k.err != nil {
		return nil, k.err
	}
	if n < len(k.results) {
		return k.results[:n], nil
	}
	return k.results, nil
}

func (k *staticKnowledge) Add(ctx context.Context, content string, metadata map[string]any) error {
	k.added = append(k.added, content)
	return nil
}

func toolCall(id, name string, args map[string]any) *llm.Reply {
	return &llm.Reply{ToolCall: &llm.ToolCall{ID: id, Name: name, Arguments: args}, FinishReason: "tool_calls"}
}

func testRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(nil)
	err := r.RegisterFunc("check_pool", "Report DB pool usage", nil, func(ctx context.Context, p map[string]any) (any, error) {
		return map[string]any{"in_use": 50, "max": 50}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func newTestAgent(t *testing.T, model *scriptedModel, kb KnowledgeBase, f LinkFetcher) *Agent {
	t.Helper()
	cfg := config.Default()
	cfg.Agent.MaxReasoningSteps = 3
	cfg.Agent.MaxConversationTurns = 4
	a, err := New(Deps{Model: model, Knowledge: kb, Tools: testRegistry(t), Fetcher: f}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestEngine_ToolLoop(t *testing.T) {
	model := &scriptedModel{replies: []*llm.Reply{
		toolCall("c1", "check_pool", map[string]any{"db": "orders"}),
		{Content: "The pool is exhausted."},
	}}
	engine := NewEngine(model, testRegistry(t), 5)
	found := []knowledge.Result{{Content: "Fixing an exhausted database connection pool", Score: 0.9}}

	var events []Event
	r, err := engine.Analyze(context.Background(), "checkout hangs", []Turn{{Query: "earlier", Response: "earlier answer"}}, nil, found,
		func(ev Event) { events = append(events, ev) })
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if r.FinalResponse != "The pool is exhausted." {
		t.Errorf("final response = %q", r.FinalResponse)
	}
	var steps []string
	for _, s := range r.Steps {
		steps = append(steps, s.Step)
	}
	want := []string{"knowledge_search", "reasoning_1", "tool_execution_1", "reasoning_2"}
	if diff := cmp.Diff(want, steps); diff != "" {
		t.Errorf("steps (-want +got):\n%s", diff)
	}
	tool := r.ToolSteps()
	if len(tool) != 1 || tool[0].Tool != "check_pool" || !tool[0].Result.Success {
		t.Errorf("unexpected tool steps: %+v", tool)
	}
	if len(events) != 1 || events[0].Stage != StageTool {
		t.Errorf("expected one tool event, got %+v", events)
	}

	first := model.calls[0]
	if first[0].Role != llm.RoleSystem || !strings.Contains(first[0].Content, "1. Fixing an exhausted database connection pool") {
		t.Errorf("system prompt should list knowledge: %q", first[0].Content)
	}
	if first[1].Content != "earlier" || first[2].Role != llm.RoleAssistant || first[3].Content != "checkout hangs" {
		t.Errorf("history not replayed: %+v", first)
	}

	second := model.calls[1]
	assistant, toolMsg := second[len(second)-2], second[len(second)-1]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "c1" {
		t.Errorf("assistant tool call missing: %+v", assistant)
	}
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "c1" || !strings.Contains(toolMsg.Content, `"in_use":50`) {
		t.Errorf("tool result message wrong: %+v", toolMsg)
	}
}

func TestEngine_StepLimit(t *testing.T) {
	model := &scriptedModel{replies: []*llm.Reply{
		toolCall("", "check_pool", nil),
		toolCall("", "missing_tool", nil),
	}}
	r, err := NewEngine(model, testRegistry(t), 2).Analyze(context.Background(), "x", nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.FinalResponse != "reasoning completed" {
		t.Errorf("final response = %q", r.FinalResponse)
	}
	steps := r.ToolSteps()
	if len(steps) != 2 || steps[1].Result.Success || steps[1].Result.Error != "tool missing_tool not found" {
		t.Errorf("unknown tool should be recorded as a failed step: %+v", steps)
	}
	if r.KnowledgeUsed == nil {
		t.Error("knowledge_used should be an empty slice")
	}
}

func TestChat_FlowAndHistory(t *testing.T) {
	model := &scriptedModel{answer: "Restart the pool.", replies: []*llm.Reply{{Content: "looks like the pool"}}}
	kb := &staticKnowledge{results: []knowledge.Result{{Content: "pool tips", Score: 1}}}
	a := newTestAgent(t, model, kb, nil)

	res, err := a.Chat(context.Background(), "orders API is slow", map[string]any{"service": "orders"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Response != "Restart the pool." || res.Error != "" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Context.BaseContext["service"] != "orders" || res.Context.LogAnalysis != nil {
		t.Errorf("unexpected context: %+v", res.Context)
	}
	if len(res.RelevantKnowledge) != 1 {
		t.Errorf("knowledge not passed through: %+v", res.RelevantKnowledge)
	}

	prompt := model.prompts[0]
	for _, want := range []string{"User question: orders API is slow", "1. Problem analysis", "4. Prevention", `"final_response": "looks like the pool"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("response prompt missing %q", want)
		}
	}

	hist := a.History()
	if len(hist) != 1 || hist[0].Query != "orders API is slow" || hist[0].Response != "Restart the pool." {
		t.Errorf("history not updated: %+v", hist)
	}
	if _, err := time.Parse("2006-01-02 15:04:05", hist[0].Timestamp); err != nil {
		t.Errorf("bad timestamp %q: %v", hist[0].Timestamp, err)
	}

	a.ClearHistory()
	if len(a.History()) != 0 {
		t.Error("history should be empty after clear")
	}
}

func TestChat_ErrorReturnsApology(t *testing.T) {
	model := &scriptedModel{chatErr: errors.New("llm offline")}
	a := newTestAgent(t, model, &staticKnowledge{}, nil)

	res, err := a.Chat(context.Background(), "db down?", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Query != "db down?" || !strings.Contains(res.Error, "llm offline") || !strings.HasPrefix(res.Response, "Sorry") {
		t.Errorf("unexpected failure result: %+v", res)
	}
	if len(a.History()) != 0 {
		t.Error("failed turns must not be recorded")
	}

	kbFail := newTestAgent(t, &scriptedModel{}, &staticKnowledge{err: errors.New("index gone")}, nil)
	if res, err := kbFail.Chat(context.Background(), "x", nil); err == nil || !strings.Contains(res.Error, "index gone") {
		t.Errorf("knowledge failure should surface: %+v %v", res, err)
	}
}

func TestChat_FetchesLinkedLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "2024-03-02 10:00:01 ERROR connection refused by upstream\n"+
			"2024-03-02 10:00:02 ERROR connection refused by upstream\n"+
			"2024-03-02 10:00:03 WARN retry queue growing\n")
	}))
	defer srv.Close()

	fcfg := config.Default().Fetcher
	fcfg.CacheTTLSeconds = 0
	model := &scriptedModel{answer: "ok", replies: []*llm.Reply{{Content: "fine"}}}
	a := newTestAgent(t, model, &staticKnowledge{}, fetcher.New(fcfg, nil))

	var stages []string
	res, err := a.ChatIn(context.Background(), a.NewConversation(), "why? see "+srv.URL+"/app.log", nil,
		func(ev Event) { stages = append(stages, ev.Stage) })
	if err != nil {
		t.Fatal(err)
	}

	sum := res.Context.FetchedDataSummary
	if sum.TotalSources != 1 || sum.SuccessfulFetches != 1 || sum.ErrorCount != 2 || sum.WarningCount != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	la := res.Context.LogAnalysis
	if la == nil {
		t.Fatal("log analysis missing")
	}
	wantRecs := []string{"found 2 errors, handle these first", "found 1 warnings, worth a look"}
	if diff := cmp.Diff(wantRecs, la.Recommendations); diff != "" {
		t.Errorf("recommendations (-want +got):\n%s", diff)
	}
	if !strings.Contains(model.calls[0][1].Content, `"successful_fetches": 1`) {
		t.Errorf("user message should carry the fetch summary: %q", model.calls[0][1].Content)
	}
	wantStages := []string{StageFetching, StageFetched, StageKnowledge, StageReasoning, StageAnswering, StageDone}
	if diff := cmp.Diff(wantStages, stages); diff != "" {
		t.Errorf("stages (-want +got):\n%s", diff)
	}
	if len(a.History()) != 0 {
		t.Error("ChatIn on another conversation must not touch the default one")
	}
}

func TestSummarizeFetched_Failures(t *testing.T) {
	fetched := []fetcher.FetchResult{
		{Link: parser.Link{Type: parser.LinkSSH, URL: "ssh://h/x"}, Error: "unsupported link type"},
		{Link: parser.Link{Type: parser.LinkHTTP, URL: "http://x"}},
	}
	s := SummarizeFetched(fetched)
	want := FetchSummary{
		TotalSources:  2,
		FailedFetches: 2,
		Sources: []SourceSummary{
			{URL: "ssh://h/x", Type: "ssh", Error: "unsupported link type"},
			{URL: "http://x", Type: "http", Error: "unknown error"},
		},
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}
	if la := AnalyzeFetched(fetched); len(la.Recommendations) != 0 || len(la.KeyFindings) != 0 {
		t.Errorf("failed fetches should produce an empty analysis: %+v", la)
	}
}

func TestErrorPatterns(t *testing.T) {
	lines := []string{
		"ERROR Timeout talking to redis 1234",
		"error timeout on redis pool",
		"error redis down",
	}
	got := ErrorPatterns(lines)
	want := []ErrorPattern{
		{Pattern: "error", Count: 3},
		{Pattern: "redis", Count: 3},
		{Pattern: "timeout", Count: 2},
		{Pattern: "talking", Count: 1},
		{Pattern: "pool", Count: 1},
		{Pattern: "down", Count: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patterns (-want +got):\n%s", diff)
	}

	var many []string
	for i := 0; i < 15; i++ {
		many = append(many, fmt.Sprintf("word%c", 'a'+i))
	}
	if n := len(ErrorPatterns([]string{strings.Join(many, " ")})); n != 10 {
		t.Errorf("expected top 10, got %d", n)
	}
}

func TestConversation_Cap(t *testing.T) {
	c := NewConversation(3)
	for i := 0; i < 5; i++ {
		c.Append(fmt.Sprintf("q%d", i), "a")
	}
	hist := c.History()
	if len(hist) != 3 || hist[0].Query != "q2" || hist[2].Query != "q4" {
		t.Errorf("expected the newest 3 turns, got %+v", hist)
	}
	if r := c.Recent(2); len(r) != 2 || r[0].Query != "q3" {
		t.Errorf("Recent(2) = %+v", r)
	}
	hist[0].Query = "mutated"
	if c.History()[0].Query != "q2" {
		t.Error("History must return a copy")
	}
}

func TestAgent_AddKnowledgeAndRegisterTool(t *testing.T) {
	kb := &staticKnowledge{}
	a := newTestAgent(t, &scriptedModel{}, kb, nil)

	if err := a.AddKnowledge(context.Background(), "Redis timeouts come from network latency", nil); err != nil {
		t.Fatal(err)
	}
	if len(kb.added) != 1 {
		t.Errorf("knowledge not added: %+v", kb.added)
	}

	err := a.RegisterTool("disk_inodes", "Report inode usage", nil, func(ctx context.Context, p map[string]any) (any, error) {
		return "12% used", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if res := a.Tools().Execute(context.Background(), "disk_inodes", nil); res.Output != "12% used" {
		t.Errorf("custom tool result = %+v", res)
	}
}
