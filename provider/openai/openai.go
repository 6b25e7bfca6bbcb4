// Package openai backs an advisor capability with the OpenAI Chat
// Completions API. It mirrors the anthropic provider so deployments can pick
// either vendor per agent.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/levysystems/agentarmy/capability"
)

// DefaultCapabilityName is the conventional registration name for an
// advisor capability.
const DefaultCapabilityName = "generate_explanation"

const systemPrompt = "You are an operations advisor inside an agent " +
	"collaboration framework. An agent has asked for help. Reply with " +
	"concise, actionable guidance in plain text."

// Options configure the OpenAI advisor. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Advisor wraps the OpenAI Chat Completions API behind the capability
// handler contract.
type Advisor struct {
	client *openai.Client
	opts   Options
}

// NewAdvisor creates an advisor using the official client. Without an
// explicit APIKey the client falls back to OPENAI_API_KEY.
func NewAdvisor(optFns ...func(o *Options)) *Advisor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := openai.NewClient(clientOpts...)

	return &Advisor{client: &client, opts: opts}
}

// NewAdvisorFromClient creates an advisor from an existing client.
func NewAdvisorFromClient(client *openai.Client, optFns ...func(o *Options)) *Advisor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Advisor{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 1024,
	}
}

// Advise asks the model for remediation guidance on one subject.
func (a *Advisor) Advise(ctx context.Context, subject, detail string) (string, error) {
	prompt := subject
	if detail != "" {
		prompt = fmt.Sprintf("%s\n\nContext:\n%s", subject, detail)
	}

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               a.opts.Model,
		Temperature:         openai.Float(a.opts.Temperature),
		MaxCompletionTokens: openai.Int(a.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Capability exposes the advisor as a registrable capability. The handler
// accepts the parameter shape used by assistance routing.
func (a *Advisor) Capability(name string) capability.Descriptor {
	return capability.Descriptor{
		Name:        name,
		Category:    "advisory",
		Description: "LLM-generated remediation guidance for a struggling agent",
		Params: []capability.Param{
			{Name: "reason", Type: "string", Required: true},
			{Name: "requesting_agent", Type: "string", Required: false},
			{Name: "priority", Type: "number", Required: false},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			reason, _ := args["reason"].(string)
			detail := ""
			if requester, ok := args["requesting_agent"].(string); ok && requester != "" {
				detail = fmt.Sprintf("requesting agent: %s", requester)
			}
			return a.Advise(ctx, reason, detail)
		},
	}
}
