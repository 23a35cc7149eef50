package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"go-triage/internal/knowledge"
	"go-triage/internal/llm"
	"go-triage/internal/tools"
)

const reasoningCompleted = "reasoning completed"

// ChatModel is the part of llm.Client the agent uses.
type ChatModel interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolSpec) (*llm.Reply, error)
	Complete(ctx context.Context, prompt string) (string, error)
}

// ToolRunner is the part of tools.Registry the engine uses.
type ToolRunner interface {
	Schemas() []llm.ToolSpec
	Execute(ctx context.Context, name string, params map[string]any) *tools.ToolResult
}

// Engine runs the tool-calling loop for one problem.
type Engine struct {
	model    ChatModel
	tools    ToolRunner
	maxSteps int
}

func NewEngine(model ChatModel, runner ToolRunner, maxSteps int) *Engine {
	if maxSteps <= 0 {
		maxSteps = 10
	}
	return &Engine{model: model, tools: runner, maxSteps: maxSteps}
}

// Analyze asks the model about problem, executing each tool it calls and
// feeding the result back, until it answers in text or maxSteps calls have
// been made. ectx may be nil. observe may be nil.
func (e *Engine) Analyze(ctx context.Context, problem string, history []Turn, ectx *EnhancedContext, found []knowledge.Result, observe Observer) (*Reasoning, error) {
	if found == nil {
		found = []knowledge.Result{}
	}
	r := &Reasoning{KnowledgeUsed: found}
	r.Steps = append(r.Steps, ReasoningStep{
		Step:        StepKnowledgeSearch,
		Description: "searched the knowledge base",
		Results:     found,
	})

	messages := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt(found)}}
	for _, t := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.Query},
			llm.Message{Role: llm.RoleAssistant, Content: t.Response},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage(problem, ectx)})

	var schemas []llm.ToolSpec
	if e.tools != nil {
		schemas = e.tools.Schemas()
	}

	for step := 1; step <= e.maxSteps; step++ {
		reply, err := e.model.Chat(ctx, messages, schemas)
		if err != nil {
			return nil, fmt.Errorf("reasoning step %d: %w", step, err)
		}

		if !reply.IsToolCall() || e.tools == nil {
			r.Steps = append(r.Steps, ReasoningStep{Step: fmt.Sprintf("%s%d", stepReasonPrefix, step), Response: reply.Content})
			r.FinalResponse = reply.Content
			log.Printf("[Reasoning] Finished after %d step(s)", step)
			return r, nil
		}

		call := reply.ToolCall
		if call.ID == "" {
			call.ID = fmt.Sprintf("call_%d", step)
		}
		r.Steps = append(r.Steps, ReasoningStep{
			Step:     fmt.Sprintf("%s%d", stepReasonPrefix, step),
			Response: fmt.Sprintf("calling tool %s", call.Name),
		})
		emit(observe, Event{Stage: StageTool, Message: fmt.Sprintf("running %s", call.Name), Data: call.Arguments})

		result := e.tools.Execute(ctx, call.Name, call.Arguments)
		r.Steps = append(r.Steps, ReasoningStep{
			Step:      fmt.Sprintf("%s%d", stepToolPrefix, step),
			Tool:      call.Name,
			Arguments: call.Arguments,
			Result:    result,
		})

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: reply.Content, ToolCalls: []llm.ToolCall{*call}},
			llm.Message{Role: llm.RoleTool, Name: call.Name, ToolCallID: call.ID, Content: toolContent(result)},
		)
	}

	log.Printf("[Reasoning] Step limit %d reached without a final answer", e.maxSteps)
	r.FinalResponse = reasoningCompleted
	return r, nil
}

func systemPrompt(found []knowledge.Result) string {
	var b strings.Builder
	b.WriteString("You are an expert at troubleshooting production engineering problems. Your job is to help the user analyze and resolve issues in live systems.\n\n")
	if len(found) > 0 {
		b.WriteString("Relevant knowledge base entries:\n")
		for i, k := range found {
			fmt.Fprintf(&b, "%d. %s\n", i+1, k.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString(`Working principles:
1. Analyze the problem systematically, following a standard troubleshooting process
2. Base conclusions on actual data and logs
3. Give concrete, actionable solutions
4. Use the tools to gather more information when needed
5. Break complex problems into steps

Analyze the problem the user describes and answer it. When you need logs, system metrics or other data, call the matching tool.`)
	return b.String()
}

func userMessage(problem string, ectx *EnhancedContext) string {
	if ectx == nil || ectx.FetchedDataSummary.TotalSources == 0 {
		return problem
	}
	summary, err := json.MarshalIndent(ectx.FetchedDataSummary, "", "  ")
	if err != nil {
		return problem
	}
	return problem + "\n\nSummary of the data fetched from the links above:\n" + string(summary)
}

func toolContent(result *tools.ToolResult) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%+v", result)
	}
	return string(raw)
}

func emit(observe Observer, ev Event) {
	if observe != nil {
		observe(ev)
	}
}
