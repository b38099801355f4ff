package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	openai "github.com/sashabaranov/go-openai"

	"clinsight.com/cra/logger"
)

// Client is the generation capability every pipeline stage depends on. The
// returned text carries no format guarantee; callers own schema validation.
type Client interface {
	Complete(ctx context.Context, role string, instructions string, inputContext string) (string, error)
}

type Config struct {
	APIKey      string  `envconfig:"CRA_OPENAI_API_KEY" required:"true"`
	BaseURL     string  `envconfig:"CRA_OPENAI_BASE_URL" default:""`
	Model       string  `envconfig:"CRA_OPENAI_MODEL" default:"gpt-4o-mini"`
	Temperature float32 `envconfig:"CRA_OPENAI_TEMPERATURE" default:"0.1"`
}

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint.
// Works against openrouter and local gateways through CRA_OPENAI_BASE_URL.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

func NewOpenAIClient() (*OpenAIClient, error) {
	llmLogger := logger.NewLogger("LLM client")
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		llmLogger.Err(err).Msg("Could not read env config")
		return nil, err
	}
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, role string, instructions string, inputContext string) (string, error) {
	if c.client == nil {
		return "", errors.New("openai client not initialized")
	}
	userContent := instructions
	if inputContext != "" {
		userContent = fmt.Sprintf("%s\n\nINPUT CONTEXT:\n%s", instructions, inputContext)
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: role},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
