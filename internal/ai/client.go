// Package ai wraps the language-model collaborator behind a narrow
// interface. The router and capabilities depend on Completer, never on
// the OpenAI SDK directly, so tests run against fakes.
package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"
)

// ToolDef describes one callable function exposed to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema
}

// ToolCall is a structured function invocation returned by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON
}

// Invoker executes one tool call and returns its textual result. Errors
// are fed back to the model as the tool result, not raised.
type Invoker func(call ToolCall) (string, error)

// Completer is the language-model collaborator consumed by the router and
// capabilities.
type Completer interface {
	// Chat runs a plain instruction/data completion.
	Chat(ctx context.Context, instructions, data string) (string, error)
	// RunTools runs a function-calling conversation: the model may answer
	// directly or issue tool calls, which are executed via invoke and fed
	// back until the model produces text.
	RunTools(ctx context.Context, instructions, userText string, tools []ToolDef, invoke Invoker) (string, error)
}

// maxToolRounds bounds the function-calling loop. One delegation needs at
// most two rounds (time resolution, then a capability); the headroom
// covers retried calls after error payloads.
const maxToolRounds = 8

// Client is the OpenAI-compatible Completer.
type Client struct {
	client *openai.Client
	model  string
}

var _ Completer = (*Client)(nil)

// NewClient creates a Client for the given endpoint and model. An empty
// url uses the public OpenAI endpoint; the API key comes from the
// OPENAI_API_KEY environment variable when not supplied.
func NewClient(url, apiKey, model string) *Client {
	var options []option.RequestOption
	if url != "" {
		options = append(options, option.WithBaseURL(url))
	}

	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		log.Info("no API key configured, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &Client{client: &client, model: model}
}

// Chat runs a single completion with a system instruction and user data.
func (c *Client) Chat(ctx context.Context, instructions, data string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(data),
		},
		Model: c.model,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("ai: no content choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// RunTools drives the function-calling loop until the model returns plain
// text or the round budget is exhausted.
func (c *Client) RunTools(ctx context.Context, instructions, userText string, tools []ToolDef, invoke Invoker) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(instructions),
			openai.UserMessage(userText),
		},
		Tools: toolParams(tools),
		Model: c.model,
	}

	for round := 0; round < maxToolRounds; round++ {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("ai: no content choices returned")
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		params.Messages = append(params.Messages, msg.ToParam())
		for _, tc := range msg.ToolCalls {
			result, err := invoke(ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
			if err != nil {
				// Tool failures go back to the model as content so the
				// conversation can still complete with an explanation.
				result = fmt.Sprintf(`{"error": %q}`, err.Error())
			}
			params.Messages = append(params.Messages, openai.ToolMessage(result, tc.ID))
		}
	}

	return "", fmt.Errorf("ai: tool loop exceeded %d rounds", maxToolRounds)
}

func toolParams(tools []ToolDef) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.Parameters),
			},
		})
	}
	return out
}
