package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// RetrieveToolName is the tool the chat model may request.
const RetrieveToolName = "retrieve"

// retrieveToolSchema is the JSON schema declared to the chat model.
var retrieveToolSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "A refined, legal-style search query"
		},
		"k": {
			"type": "integer",
			"description": "Number of document chunks to retrieve",
			"default": 5
		}
	},
	"required": ["query"]
}`)

// ChatModel is the decide/answer capability backed by an OpenAI-compatible
// chat completions API with the retrieval tool declared.
type ChatModel struct {
	client      *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
}

// ChatConfig holds the chat provider settings.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewChatModel creates an OpenAI-compatible chat capability.
func NewChatModel(cfg ChatConfig) *ChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &ChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		timeout:     cfg.Timeout,
	}
}

// Decide runs one decision step: the model either answers with content or
// requests a single retrieval. Only the first tool call of a response is
// honored; the orchestrator allows at most one pending round-trip.
func (c *ChatModel) Decide(ctx context.Context, history []domain.Message) (domain.Decision, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    toChatMessages(history),
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        RetrieveToolName,
				Description: "Retrieve relevant legal document chunks from the indexed tax Acts.",
				Parameters:  retrieveToolSchema,
			},
		}},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("chat completion: %w: %w", domain.ErrCapability, err)
	}
	if len(resp.Choices) == 0 {
		return domain.Decision{}, fmt.Errorf("empty chat response: %w", domain.ErrCapability)
	}

	msg := resp.Choices[0].Message
	decision := domain.Decision{Content: msg.Content}

	if len(msg.ToolCalls) > 0 {
		tc, err := parseToolCall(msg.ToolCalls[0])
		if err != nil {
			return domain.Decision{}, err
		}
		decision.ToolCall = tc
	}

	return decision, nil
}

func parseToolCall(tc openai.ToolCall) (*domain.ToolCall, error) {
	if tc.Function.Name != RetrieveToolName {
		return nil, fmt.Errorf("unknown tool %q requested: %w", tc.Function.Name, domain.ErrCapability)
	}

	var args struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w: %w", domain.ErrCapability, err)
	}
	if args.Query == "" {
		return nil, fmt.Errorf("tool call without query: %w", domain.ErrCapability)
	}

	return &domain.ToolCall{
		ID:    tc.ID,
		Name:  tc.Function.Name,
		Query: args.Query,
		K:     args.K,
	}, nil
}

// toChatMessages converts thread history to the wire format.
func toChatMessages(history []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: m.Content,
			})
		case domain.RoleHuman:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: m.Content,
			})
		case domain.RoleAI:
			cm := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			if m.ToolCall != nil {
				args, _ := json.Marshal(map[string]any{
					"query": m.ToolCall.Query,
					"k":     m.ToolCall.K,
				})
				cm.ToolCalls = []openai.ToolCall{{
					ID:   m.ToolCall.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      m.ToolCall.Name,
						Arguments: string(args),
					},
				}}
			}
			out = append(out, cm)
		case domain.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

// HealthCheck verifies API availability via ListModels.
func (c *ChatModel) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
