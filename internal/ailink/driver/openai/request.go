package openai

import (
	"fmt"
	"strings"

	"github.com/fragstat/fragstat/internal/ailink/driver"
)

type chatCompletionRequest struct {
	Model          string                 `json:"model"`
	Messages       []driver.Message       `json:"messages"`
	ResponseFormat *driver.ResponseFormat `json:"response_format,omitempty"`
	Temperature    *float64               `json:"temperature,omitempty"`
	MaxTokens      *int                   `json:"max_tokens,omitempty"`
}

func buildChatRequest(req *driver.Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case driver.RoleSystem, driver.RoleUser, driver.RoleAssistant:
		default:
			return nil, fmt.Errorf("unsupported message role: %q", msg.Role)
		}
	}

	payload := &chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if rf := req.ResponseFormat; rf != nil {
		format := *rf
		if format.JSONSchema != nil {
			// Schema names must be alphanumeric or underscore.
			schema := *format.JSONSchema
			schema.Name = strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(schema.Name)
			format.JSONSchema = &schema
		}
		payload.ResponseFormat = &format
	}
	return payload, nil
}
