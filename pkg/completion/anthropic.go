package completion

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/amadou/relais/pkg/convo"
)

// AnthropicProvider generates replies through the Anthropic Messages API.
// The leading system message is lifted into the dedicated system parameter;
// the remaining turns map onto alternating message params.
type AnthropicProvider struct {
	client anthropic.Client
	opts   Options
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey string, opts Options) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		opts:   opts,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete makes a Messages API call with the windowed conversation.
func (p *AnthropicProvider) Complete(ctx context.Context, messages []convo.Message) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.opts.Model),
		MaxTokens: int64(p.opts.MaxTokens),
	}

	for _, msg := range messages {
		switch msg.Role {
		case convo.RoleSystem:
			params.System = []anthropic.TextBlockParam{{Text: msg.Content}}
		case convo.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case convo.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	if p.opts.Temperature > 0 {
		params.Temperature = anthropic.Float(p.opts.Temperature)
	}

	response, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", wrapErr(p.Name(), err)
	}

	var reply strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			reply.WriteString(text.Text)
		}
	}
	if reply.Len() == 0 {
		return "", wrapErr(p.Name(), ErrEmptyReply)
	}

	return strings.TrimSpace(reply.String()), nil
}
