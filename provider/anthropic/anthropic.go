// Package anthropic backs an advisor capability with the Anthropic Messages
// API. The advisor produces short remediation guidance for a struggling
// agent and is typically registered as another agent's assist capability.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/levysystems/agentarmy/capability"
)

// DefaultCapabilityName is the conventional registration name for an
// advisor capability.
const DefaultCapabilityName = "generate_explanation"

const systemPrompt = "You are an operations advisor inside an agent " +
	"collaboration framework. An agent has asked for help. Reply with " +
	"concise, actionable guidance in plain text."

// Options configures the Anthropic advisor (model id, temperature, max
// tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Advisor wraps the Anthropic Messages API behind the capability handler
// contract.
type Advisor struct {
	client *anthropic.Client
	opts   Options
}

// NewAdvisor creates an advisor using the official client. Without an
// explicit APIKey the client falls back to ANTHROPIC_API_KEY.
func NewAdvisor(optFns ...func(o *Options)) *Advisor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Advisor{client: &client, opts: opts}
}

// NewAdvisorFromClient creates an advisor from an existing client.
func NewAdvisorFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Advisor {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Advisor{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Advise asks the model for remediation guidance on one subject.
func (a *Advisor) Advise(ctx context.Context, subject, detail string) (string, error) {
	prompt := subject
	if detail != "" {
		prompt = fmt.Sprintf("%s\n\nContext:\n%s", subject, detail)
	}

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}
	return sb.String(), nil
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
