package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"persona/internal/domain"
	"persona/internal/workflow"
)

type queueRequest struct {
	Prompt   workflow.Template `json:"prompt"`
	ClientID string            `json:"client_id"`
}

type queueResponse struct {
	PromptID   string         `json:"prompt_id"`
	Number     int            `json:"number"`
	NodeErrors map[string]any `json:"node_errors"`
}

// QueuePrompt submits a bound workflow and returns the engine's job id.
func (c *Client) QueuePrompt(ctx context.Context, tpl workflow.Template) (string, error) {
	payload, err := json.Marshal(queueRequest{Prompt: tpl, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("comfy: encode prompt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("comfy: build prompt request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmissionRejected, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(domain.ErrSubmissionRejected, resp)
	}
	var out queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", domain.ErrSubmissionRejected, err)
	}
	id := strings.TrimSpace(out.PromptID)
	if id == "" {
		return "", fmt.Errorf("%w: response carried no prompt_id", domain.ErrSubmissionRejected)
	}
	c.logger.Debug().Str("prompt_id", id).Int("number", out.Number).Msg("comfy: prompt queued")
	return id, nil
}
