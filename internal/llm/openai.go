package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements the Client interface using OpenAI's API as a fallback.
// Uses function calling to get structured results.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAI-powered image finder.
func NewOpenAIClient(apiKey string, model string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewOpenAIClientWithBaseURL targets an OpenAI-compatible endpoint.
func NewOpenAIClientWithBaseURL(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAIClient) ProviderName() string { return "openai" }
func (o *OpenAIClient) ModelName() string     { return o.model }

func (o *OpenAIClient) FindImageURLs(ctx context.Context, query string) (*ImageSearchResult, error) {
	// OpenAI's Parameters field accepts `any`; we pass a raw JSON schema map.
	tools := []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        submitToolName,
				Description: "Submit the photo URLs found for the tour. Call this once you have the best candidates.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": imageSchemaProperties(),
					"required":   []string{"image_urls", "confidence"},
				},
			},
		},
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role: openai.ChatMessageRoleSystem,
			Content: `You are a photo finder assistant for travel posters. Find direct image URLs of tours and attractions.
Return them via the submit_image_urls function. Prefer large photos from official sources.`,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: buildPrompt(query),
		},
	}

	for i := 0; i < maxTurns; i++ {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    o.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, fmt.Errorf("openai API call: %w", err)
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai returned no choices")
		}

		choice := resp.Choices[0]

		if len(choice.Message.ToolCalls) > 0 {
			messages = append(messages, choice.Message)

			for _, toolCall := range choice.Message.ToolCalls {
				if toolCall.Function.Name == submitToolName {
					var result submitImageResult
					if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &result); err != nil {
						return nil, fmt.Errorf("parsing tool arguments: %w", err)
					}
					return result.toResult(query)
				}

				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    "Received. Please continue and call submit_image_urls with the photo URLs.",
					ToolCallID: toolCall.ID,
				})
			}
			continue
		}

		if choice.FinishReason == openai.FinishReasonStop {
			return nil, fmt.Errorf("OpenAI ended without finding images for %q", query)
		}
	}

	return nil, fmt.Errorf("exceeded max turns without finding images for %q", query)
}
