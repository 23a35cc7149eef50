// internal/tools/registry.go
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go-triage/internal/config"
	"go-triage/internal/llm"
)

// Registry manages all available tools
type Registry struct {
	tools    map[string]Tool
	settings map[string]config.ToolSettings
	mu       sync.RWMutex
}

// NewRegistry creates a new tool registry. settings may be nil.
func NewRegistry(settings map[string]config.ToolSettings) *Registry {
	if settings == nil {
		settings = map[string]config.ToolSettings{}
	}
	return &Registry{
		tools:    make(map[string]Tool),
		settings: settings,
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return errors.New("tool name must not be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = tool
	log.Printf("[ToolRegistry] Registered tool: %s - %s", name, tool.Description())
	return nil
}

// Func is the signature of a custom tool. A map[string]any return value
// becomes the result's Data; anything else is only JSON-encoded into Output.
type Func func(ctx context.Context, params map[string]any) (any, error)

// RegisterFunc registers fn as a tool. A nil schema means an object with no
// declared properties.
func (r *Registry) RegisterFunc(name, description string, parameters map[string]any, fn Func) error {
	if fn == nil {
		return fmt.Errorf("tool %s: nil function", name)
	}
	return r.Register(&funcTool{name: name, description: description, parameters: parameters, fn: fn})
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns every registered tool sorted by name
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Info, 0, len(r.tools))
	for name, tool := range r.tools {
		list = append(list, Info{Name: name, Description: tool.Description(), Parameters: schemaOf(tool)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Schemas returns the function-calling declarations for the LLM.
func (r *Registry) Schemas() []llm.ToolSpec {
	list := r.List()
	specs := make([]llm.ToolSpec, 0, len(list))
	for _, info := range list {
		specs = append(specs, llm.ToolSpec{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.Parameters,
		})
	}
	return specs
}

// Execute runs a tool. It never returns nil: lookup failures and tool errors
// come back as a result with Success false.
func (r *Registry) Execute(ctx context.Context, toolName string, params map[string]any) *ToolResult {
	tool, err := r.Get(toolName)
	if err != nil {
		log.Printf("[ToolRegistry] Unknown tool requested: %s", toolName)
		return &ToolResult{Success: false, Error: fmt.Sprintf("tool %s not found", toolName)}
	}
	if params == nil {
		params = map[string]any{}
	}

	execTimeout := r.timeout(toolName)
	timeoutCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	log.Printf("[ToolRegistry] Executing tool '%s' (timeout: %s)", toolName, execTimeout)

	startTime := time.Now()
	result, err := tool.Execute(timeoutCtx, params)
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("tool %s timed out after %s: %w", toolName, execTimeout, err)
		}
		log.Printf("[ToolRegistry] Tool '%s' failed after %s: %v", toolName, duration, err)
		return &ToolResult{
			Success:  false,
			Error:    err.Error(),
			Duration: duration,
		}
	}
	if result == nil {
		result = &ToolResult{Success: true}
	}

	result.Duration = duration
	log.Printf("[ToolRegistry] Tool '%s' completed in %s (success: %v)",
		toolName, duration, result.Success)
	return result
}

func (r *Registry) timeout(name string) time.Duration {
	if s, ok := r.settings[name]; ok && s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return defaultToolTimeout
}

// Enabled reports whether per-tool settings leave the tool switched on.
func (r *Registry) Enabled(name string) bool {
	s, ok := r.settings[name]
	return !ok || s.Enabled == nil || *s.Enabled
}

func schemaOf(t Tool) map[string]any {
	if p := t.Parameters(); p != nil {
		return p
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

type funcTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

func (t *funcTool) Name() string               { return t.name }
func (t *funcTool) Description() string        { return t.description }
func (t *funcTool) Parameters() map[string]any { return t.parameters }

func (t *funcTool) Execute(ctx context.Context, params map[string]any) (*ToolResult, error) {
	value, err := t.fn(ctx, params)
	if err != nil {
		return nil, err
	}
	if data, ok := value.(map[string]any); ok {
		return dataResult(data), nil
	}
	if s, ok := value.(string); ok {
		return &ToolResult{Success: true, Output: s}, nil
	}
	out, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode result of %s: %w", t.name, err)
	}
	return &ToolResult{Success: true, Output: string(out)}, nil
}

// dataResult wraps structured tool output, mirroring Data as JSON in Output.
func dataResult(data map[string]any) *ToolResult {
	out, err := json.Marshal(data)
	if err != nil {
		out = []byte(fmt.Sprintf("%v", data))
	}
	return &ToolResult{Success: true, Output: string(out), Data: data}
}
