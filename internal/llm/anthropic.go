package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient implements the Client interface using Claude with native web search.
// Claude's built-in web_search tool lets it search autonomously; it then calls
// our submit tool with structured results.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new Claude-powered image finder.
// Extra request options (base URL, HTTP client) are mostly useful in tests.
func NewAnthropicClient(apiKey string, model string, opts ...option.RequestOption) *AnthropicClient {
	client := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)
	return &AnthropicClient{
		client: &client,
		model:  model,
	}
}

func (a *AnthropicClient) ProviderName() string { return "anthropic" }
func (a *AnthropicClient) ModelName() string     { return a.model }

func (a *AnthropicClient) FindImageURLs(ctx context.Context, query string) (*ImageSearchResult, error) {
	submitTool := anthropic.ToolParam{
		Name:        submitToolName,
		Description: param.NewOpt("Submit the photo URLs you found. Call this tool once you have the best candidates."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Properties: imageSchemaProperties(),
		},
	}

	// web_search is built in; the SDK has a dedicated struct for it.
	tools := []anthropic.ToolUnionParam{
		{OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{}},
		{OfTool: &submitTool},
	}

	// Agentic loop: search -> read results -> search more -> submit.
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(query))),
	}

	for i := 0; i < maxTurns; i++ {
		message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     anthropic.Model(a.model),
			MaxTokens: 1024,
			Messages:  messages,
			Tools:     tools,
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic API call: %w", err)
		}

		for _, block := range message.Content {
			toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok || toolUse.Name != submitToolName {
				continue
			}

			inputBytes, err := json.Marshal(toolUse.Input)
			if err != nil {
				return nil, fmt.Errorf("marshaling tool input: %w", err)
			}
			var result submitImageResult
			if err := json.Unmarshal(inputBytes, &result); err != nil {
				return nil, fmt.Errorf("parsing tool input: %w", err)
			}
			return result.toResult(query)
		}

		if message.StopReason == "end_turn" {
			return nil, fmt.Errorf("Claude ended without finding images for %q", query)
		}

		// Web search results are handled by the API; only our own tool calls
		// need an explicit result.
		messages = append(messages, message.ToParam())

		toolResults := []anthropic.ContentBlockParamUnion{}
		for _, block := range message.Content {
			toolUse, ok := block.AsAny().(anthropic.ToolUseBlock)
			if !ok || toolUse.Name == "web_search" {
				continue
			}
			toolResults = append(toolResults,
				anthropic.NewToolResultBlock(toolUse.ID, "Received, please continue searching.", false))
		}
		if len(toolResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResults...))
		}
	}

	return nil, fmt.Errorf("exceeded max turns without finding images for %q", query)
}
