// Package agent turns natural-language queries into tool calls and tool
// results back into prose. Each domain gets its own Agent sharing the
// same machinery: one LLM function-calling step to pick tools, sequential
// dispatch, then either an LLM summary or a deterministic template.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"

	"opschat/service"
	"opschat/shared"
)

// Completer is the LLM call we depend on; *openai.Client satisfies it.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Planner is the deterministic fallback: keyword rules pick tool calls
// directly when no LLM client is configured. Secondary path only; it does
// not try to match the LLM-driven path feature for feature.
type Planner func(query string) []shared.ToolCall

// Agent handles queries for one domain.
type Agent struct {
	name      string
	prompt    string
	model     string
	client    Completer
	dispatch  *service.Dispatcher
	fallback  Planner
	summarize bool
}

const maxHistoryTurns = 8

func New(name, prompt, model string, client Completer, dispatch *service.Dispatcher, fallback Planner, summarize bool) *Agent {
	return &Agent{
		name:      name,
		prompt:    prompt,
		model:     model,
		client:    client,
		dispatch:  dispatch,
		fallback:  fallback,
		summarize: summarize,
	}
}

func (a *Agent) Name() string { return a.name }

// Tools exposes the agent's registered tool set, mainly for wiring checks.
func (a *Agent) Tools() []openai.Tool { return a.dispatch.Tools() }

// Handle answers one query. history is read-only grounding context; the
// agent never mutates it. Tool failures return as errors for the caller to
// render (see ErrorText); a nil error always carries displayable text.
func (a *Agent) Handle(ctx context.Context, query string, history []shared.ConversationTurn) (string, error) {
	if a.client == nil {
		return a.handleRuleBased(ctx, query)
	}
	return a.handleLLM(ctx, query, history)
}

func (a *Agent) handleLLM(ctx context.Context, query string, history []shared.ConversationTurn) (string, error) {
	msgs := a.baseMessages(query, history)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
		Tools:    a.dispatch.Tools(),
	})
	if err != nil {
		return "", &shared.UpstreamError{Service: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &shared.UpstreamError{Service: "openai", Message: "empty completion"}
	}
	msg := resp.Choices[0].Message

	// No tool call means the model answered (or asked a clarifying
	// question) directly.
	if len(msg.ToolCalls) == 0 {
		return msg.Content, nil
	}

	outputs, toolMsgs, err := a.runToolCalls(ctx, msg.ToolCalls)
	if err != nil {
		return "", err
	}

	if !a.summarize {
		return strings.Join(outputs, "\n"), nil
	}

	msgs = append(msgs, msg)
	msgs = append(msgs, toolMsgs...)
	final, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: msgs,
	})
	if err != nil {
		return "", &shared.UpstreamError{Service: "openai", Err: err}
	}
	if len(final.Choices) == 0 || final.Choices[0].Message.Content == "" {
		return strings.Join(outputs, "\n"), nil
	}
	return final.Choices[0].Message.Content, nil
}

// runToolCalls executes the proposed calls in order, stopping at the
// first failure.
func (a *Agent) runToolCalls(ctx context.Context, calls []openai.ToolCall) ([]string, []openai.ChatCompletionMessage, error) {
	var outputs []string
	var toolMsgs []openai.ChatCompletionMessage
	for _, call := range calls {
		log.Debug().Str("agent", a.name).Str("tool", call.Function.Name).
			Str("args", call.Function.Arguments).Msg("dispatching tool call")
		out, err := a.dispatch.Dispatch(ctx, call.Function.Name, call.Function.Arguments)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, out)
		toolMsgs = append(toolMsgs, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: call.ID,
			Content:    out,
		})
	}
	return outputs, toolMsgs, nil
}

func (a *Agent) handleRuleBased(ctx context.Context, query string) (string, error) {
	calls := a.fallback(query)
	if len(calls) == 0 {
		return fmt.Sprintf("I can help with %s queries. Try asking for a specific month, e.g. \"show me %s from January\".", a.name, a.name), nil
	}
	var outputs []string
	for _, call := range calls {
		out, err := a.dispatch.Dispatch(ctx, call.Name, call.Arguments)
		if err != nil {
			return "", err
		}
		outputs = append(outputs, out)
	}
	return strings.Join(outputs, "\n"), nil
}

func (a *Agent) baseMessages(query string, history []shared.ConversationTurn) []openai.ChatCompletionMessage {
	msgs := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.prompt},
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.User},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Assistant},
		)
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: query})
}

// ErrorText renders any agent or dispatch failure as text fit for the
// chat window. Nothing leaks as a stack trace.
func ErrorText(err error) string {
	var unknownTool *shared.UnknownToolError
	var invalidArgs *shared.InvalidArgumentsError
	var upstream *shared.UpstreamError
	switch {
	case errors.As(err, &unknownTool):
		return "I couldn't find a matching operation."
	case errors.As(err, &invalidArgs):
		return fmt.Sprintf("I couldn't understand part of that request (%s). Could you rephrase it?", invalidArgs.Reason)
	case errors.As(err, &upstream):
		if upstream.Timeout {
			return fmt.Sprintf("The %s request timed out. Please try again in a moment.", upstream.Service)
		}
		if upstream.StatusCode != 0 {
			return fmt.Sprintf("The %s service returned an error (HTTP %d): %s", upstream.Service, upstream.StatusCode, upstream.Message)
		}
		return fmt.Sprintf("The %s service could not be reached.", upstream.Service)
	default:
		return fmt.Sprintf("Something went wrong while handling that request: %v", err)
	}
}
