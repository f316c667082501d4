// Package agent wires the tool-calling chat model, the course tools, and the
// session store into the core query orchestrator. The assistant runs a
// bounded tool loop: the model may request tools for a fixed number of
// rounds, every tool result is fed back, and the final round generates with
// no tools bound so the model must produce a plain answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/courseai-go/internal/budget"
	"github.com/54b3r/courseai-go/internal/logging"
	"github.com/54b3r/courseai-go/internal/session"
	"github.com/54b3r/courseai-go/internal/tools"
	"github.com/54b3r/courseai-go/internal/vectorstore"
)

// DefaultMaxToolRounds bounds how many times the model may request tools for
// a single query before it is forced to answer.
const DefaultMaxToolRounds = 2

// systemPrompt establishes the assistant's persona and tool protocol. It is
// static so every query shares one prompt.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content with access to comprehensive tools for course information.

Available Tools:
1. **Content Search Tool** (search_course_content): For finding specific course content and detailed educational materials
2. **Course Outline Tool** (get_course_outline): For getting complete course structure including course title, course link, instructor, and all lessons with their titles and numbers

Tool Usage Guidelines:
- **Course outline/structure questions**: Use the course outline tool to get course title, course link, instructor, and complete lesson list
- **Specific content questions**: Use the content search tool for detailed educational materials
- You may make up to two rounds of tool calls per query when the first round's results require a follow-up lookup
- Synthesize tool results into accurate, fact-based responses
- If tools yield no results, state this clearly without offering alternatives

Response Protocol:
- **General knowledge questions**: Answer using existing knowledge without using tools
- **Course outline questions**: Use course outline tool first, then provide complete course information
- **Course-specific content questions**: Use content search tool first, then answer
- **No meta-commentary**:
 - Provide direct answers only, without reasoning process, tool explanations, or question-type analysis
 - Do not mention "based on the tool results" or "using the outline tool"

All responses must be:
1. **Brief, Concise and focused** - Get to the point quickly
2. **Educational** - Maintain instructional value
3. **Clear** - Use accessible language
4. **Example-supported** - Include relevant examples when they aid understanding
Provide only the direct answer to what was asked.`

// GenerationServiceError wraps failures of the chat model backend so callers
// can distinguish "the LLM is down" from domain errors and map it to a 502
// rather than a 500.
type GenerationServiceError struct {
	// Err is the underlying model error.
	Err error
}

// Error implements the error interface.
func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("agent: generation service failed: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *GenerationServiceError) Unwrap() error { return e.Err }

// Answer is the assistant's reply to one query: the final text plus the
// sources consulted by the most recent tool invocation.
type Answer struct {
	// Text is the model's final answer.
	Text string

	// Sources lists the course materials behind the latest tool result.
	// Earlier invocations in the same turn are superseded, not accumulated.
	// Empty when the model answered without tools.
	Sources []vectorstore.SourceRef
}

// Config holds the dependencies required to construct an Assistant.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Tools is the manager owning the course tools. May be nil, in which
	// case every query is answered without tools.
	Tools *tools.Manager

	// Sessions is the optional conversation store. If nil, each query is
	// stateless.
	Sessions *session.Store

	// MaxToolRounds bounds tool-calling rounds per query. Defaults to
	// DefaultMaxToolRounds if zero.
	MaxToolRounds int

	// MaxContextTokens is the estimated token budget for the full input
	// context. History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Assistant orchestrates one query at a time: history injection, the bounded
// tool loop, source collection, and session persistence.
type Assistant struct {
	chatModel model.ToolCallingChatModel

	// toolModel is chatModel with the tool schemas bound, prepared once at
	// construction. Nil when no tools are configured.
	toolModel model.ToolCallingChatModel

	manager          *tools.Manager
	sessions         *session.Store
	maxToolRounds    int
	maxContextTokens int
}

// New constructs an Assistant from the provided Config.
func New(ctx context.Context, cfg *Config) (*Assistant, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}

	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}

	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	a := &Assistant{
		chatModel:        cfg.ChatModel,
		manager:          cfg.Tools,
		sessions:         cfg.Sessions,
		maxToolRounds:    rounds,
		maxContextTokens: maxCtx,
	}

	if cfg.Tools != nil {
		infos, err := cfg.Tools.Infos(ctx)
		if err != nil {
			return nil, err
		}
		if len(infos) > 0 {
			bound, err := cfg.ChatModel.WithTools(infos)
			if err != nil {
				return nil, fmt.Errorf("agent: binding tools: %w", err)
			}
			a.toolModel = bound
		}
	}

	return a, nil
}

// Query answers a single user query. The model decides whether to call tools;
// the assistant executes them, feeds results back, and forces a plain answer
// once the round bound is reached. The completed exchange is persisted to the
// session afterwards.
func (a *Assistant) Query(ctx context.Context, query, sessionID string) (*Answer, error) {
	log := logging.FromContext(ctx)
	messages := a.buildMessages(ctx, query, sessionID)

	var sources []vectorstore.SourceRef

	for round := 0; round < a.maxToolRounds && a.toolModel != nil; round++ {
		resp, err := a.toolModel.Generate(ctx, messages)
		if err != nil {
			return nil, &GenerationServiceError{Err: err}
		}

		if len(resp.ToolCalls) == 0 {
			return a.finish(ctx, query, sessionID, resp.Content, sources), nil
		}

		messages = append(messages, resp)
		for _, tc := range resp.ToolCalls {
			content := a.runTool(ctx, log, tc, &sources)
			messages = append(messages, schema.ToolMessage(content, tc.ID))
		}
	}

	// Round bound reached (or no tools configured): generate without tools
	// bound so the model cannot request another round.
	resp, err := a.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, &GenerationServiceError{Err: err}
	}
	return a.finish(ctx, query, sessionID, resp.Content, sources), nil
}

// runTool executes one tool call and returns the content to hand back to the
// model. A successful invocation's sources replace whatever earlier rounds
// produced; a failure leaves them untouched. Tool failures are relayed as
// tool results rather than aborting the query; the model can still explain
// the failure to the user.
func (a *Assistant) runTool(ctx context.Context, log *slog.Logger, tc schema.ToolCall, sources *[]vectorstore.SourceRef) string {
	name := tc.Function.Name
	log.Info("agent: executing tool",
		slog.String("tool", name),
	)

	result, err := a.manager.Execute(ctx, name, tc.Function.Arguments)
	if err != nil {
		log.Warn("agent: tool execution failed",
			slog.String("tool", name),
			slog.Any("error", err),
		)
		return fmt.Sprintf("Tool execution failed: %v", err)
	}

	*sources = result.Sources
	return result.Content
}

// finish persists the exchange and assembles the Answer.
func (a *Assistant) finish(ctx context.Context, query, sessionID, text string, sources []vectorstore.SourceRef) *Answer {
	text = strings.TrimSpace(text)
	if a.sessions != nil && sessionID != "" {
		a.sessions.AddExchange(sessionID, query, text)
	}
	return &Answer{Text: text, Sources: sources}
}

// buildMessages constructs the initial message slice: system prompt, trimmed
// session history as alternating user/assistant turns, then the query.
func (a *Assistant) buildMessages(ctx context.Context, query, sessionID string) []*schema.Message {
	system := schema.SystemMessage(systemPrompt)

	var historyMsgs []*schema.Message
	if a.sessions != nil && sessionID != "" {
		for _, ex := range a.sessions.History(sessionID) {
			historyMsgs = append(historyMsgs, schema.UserMessage(ex.UserMessage))
			historyMsgs = append(historyMsgs, schema.AssistantMessage(ex.AssistantMessage, nil))
		}
	}

	fixed := []*schema.Message{system, schema.UserMessage(query)}
	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, a.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("budget: dropped history messages to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", a.maxContextTokens),
		)
	}

	messages := make([]*schema.Message, 0, 2+len(historyMsgs))
	messages = append(messages, system)
	messages = append(messages, historyMsgs...)
	messages = append(messages, schema.UserMessage(query))
	return messages
}
