// Package tools defines the Tool interface and the course-material tool
// implementations the assistant can invoke during a query: semantic content
// search and course outline lookup. Tool schemas use Eino's ToolInfo types so
// they can be bound directly to any tool-calling chat model, but execution is
// routed through the Manager so every invocation's sources stay attached to
// its result.
package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// Result is the outcome of one tool invocation. Content goes back to the
// model as the tool result; Sources carry the attribution for whatever the
// content was built from and flow to the end user, never through the model.
type Result struct {
	// Content is the text handed back to the model.
	Content string

	// Sources lists the materials the content was derived from. Empty for
	// tools (or invocations) that consulted nothing attributable.
	Sources []vectorstore.SourceRef
}

// Tool is the interface every assistant tool must satisfy. The set of tools
// is fixed at construction; there is no runtime plugin surface.
type Tool interface {
	// Name returns the unique tool name exposed to the model.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the model as part of the tool schema.
	Description() string

	// Info returns the Eino tool metadata including the JSON input schema.
	Info(ctx context.Context) (*schema.ToolInfo, error)

	// Execute runs the tool with the model-provided JSON arguments. Malformed
	// or failing invocations return an error; the caller decides how to relay
	// it to the model.
	Execute(ctx context.Context, argumentsInJSON string) (*Result, error)
}

// UnknownToolError reports a model request for a tool name that was never
// registered.
type UnknownToolError struct {
	// Name is the unrecognised tool name as requested by the model.
	Name string
}

// Error implements the error interface.
func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("tools: unknown tool %q", e.Name)
}

// Manager owns the registered tool set and routes invocations by name. It is
// populated once at startup and read-only afterwards, so it is safe for
// concurrent use.
type Manager struct {
	tools  []Tool
	byName map[string]Tool
}

// NewManager constructs a Manager over the given tools. Registering two tools
// with the same name is a programming error and panics at startup.
func NewManager(tools ...Tool) *Manager {
	m := &Manager{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := m.byName[t.Name()]; dup {
			panic(fmt.Sprintf("tools: duplicate tool name %q", t.Name()))
		}
		m.tools = append(m.tools, t)
		m.byName[t.Name()] = t
	}
	return m
}

// Infos returns the schema of every registered tool, in registration order,
// for binding to the chat model.
func (m *Manager) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(m.tools))
	for _, t := range m.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: schema for %q: %w", t.Name(), err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Execute routes an invocation to the named tool. An unregistered name
// returns an *UnknownToolError.
func (m *Manager) Execute(ctx context.Context, name, argumentsInJSON string) (*Result, error) {
	t, ok := m.byName[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t.Execute(ctx, argumentsInJSON)
}
