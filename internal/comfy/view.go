package comfy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"persona/internal/domain"
)

// View downloads a produced file through the engine's /view endpoint.
func (c *Client) View(ctx context.Context, ref ImageRef) (domain.Artifact, error) {
	kind := ref.Type
	if kind == "" {
		kind = "output"
	}
	q := url.Values{}
	q.Set("filename", ref.Filename)
	q.Set("subfolder", ref.Subfolder)
	q.Set("type", kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/view?"+q.Encode(), nil)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("comfy: build view request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("comfy: view request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Artifact{}, fmt.Errorf("comfy: view status %d: %s", resp.StatusCode, readErrorBody(resp))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("comfy: read artifact: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return domain.Artifact{
		Filename:    ref.Filename,
		Subfolder:   ref.Subfolder,
		ContentType: contentType,
		Data:        data,
	}, nil
}
