package openai

import (
	"fmt"

	"github.com/fragstat/fragstat/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Model   string        `json:"model"`
	Choices []choice      `json:"choices"`
	Usage   *driver.Usage `json:"usage,omitempty"`
}

type choice struct {
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

func toDriverResponse(resp *chatCompletionResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response choices")
	}

	first := resp.Choices[0]
	if first.Message.Refusal != "" && first.Message.Content == "" {
		return nil, fmt.Errorf("model refused: %s", first.Message.Refusal)
	}
	return &driver.Response{
		Text:         first.Message.Content,
		FinishReason: first.FinishReason,
		Model:        resp.Model,
		Usage:        resp.Usage,
	}, nil
}
