// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Also serves any OpenAI-compatible endpoint (xAI, DeepSeek) via a
//   custom base URL

package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/warden-agent/warden/netx"
)

// OpenAIProvider implements the Provider interface for OpenAI and for
// OpenAI-compatible endpoints.
type OpenAIProvider struct {
	client      *openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		name:        "openai",
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// NewOpenAICompatProvider creates a provider for an OpenAI-compatible
// API served at baseURL (xAI Grok, DeepSeek).
func NewOpenAICompatProvider(name, apiKey, baseURL, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(config),
		name:        name,
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// SendTurn sends one chat turn with tool definitions.
func (p *OpenAIProvider) SendTurn(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (ModelReply, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    convertToOpenAIMessages(messages),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Tools:       convertToOpenAITools(tools),
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return ModelReply{}, fmt.Errorf("chat completion failed: %w", wrapOpenAIStatus(err))
	}

	reply := ModelReply{}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		reply.Content = choice.Message.Content
		reply.FinishReason = string(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}

	reply.Usage = &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return reply, nil
}

// wrapOpenAIStatus surfaces the HTTP status so netx.Classify can tell
// transient server failures from permanent request errors.
func wrapOpenAIStatus(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return netx.NewHTTPError(apiErr.HTTPStatusCode, err)
	}
	return err
}

// convertToOpenAIMessages converts ChatMessage values, carrying tool
// calls and tool responses through.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}

		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
