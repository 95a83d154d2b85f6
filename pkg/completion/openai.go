package completion

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/amadou/relais/pkg/convo"
)

// OpenAIProvider speaks the OpenAI chat-completions protocol. DeepSeek
// exposes a compatible API, so pointing BaseURL at https://api.deepseek.com
// with model "deepseek-chat" reaches it through the same client.
type OpenAIProvider struct {
	client openai.Client
	opts   Options
}

// NewOpenAIProvider creates a chat-completions provider. baseURL may be
// empty for the default OpenAI endpoint.
func NewOpenAIProvider(apiKey, baseURL string, opts Options) *OpenAIProvider {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		opts:   opts,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete makes a chat-completions call with the windowed conversation.
func (p *OpenAIProvider) Complete(ctx context.Context, messages []convo.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.opts.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}

	for _, msg := range messages {
		switch msg.Role {
		case convo.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case convo.RoleUser:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		case convo.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		}
	}

	if p.opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.opts.MaxTokens))
	}
	if p.opts.Temperature > 0 {
		params.Temperature = openai.Float(p.opts.Temperature)
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapErr(p.Name(), err)
	}
	if len(response.Choices) == 0 {
		return "", wrapErr(p.Name(), ErrEmptyReply)
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
