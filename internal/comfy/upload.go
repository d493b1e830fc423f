package comfy

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/google/uuid"

	"persona/internal/domain"
)

// UploadImage pushes img into the engine's input store under a fresh
// "<uuid><ext>" name and returns that name for use inside a job.
func (c *Client) UploadImage(ctx context.Context, img domain.InputImage) (domain.AssetHandle, error) {
	if err := img.Validate(); err != nil {
		return "", err
	}
	handle := domain.AssetHandle(uuid.NewString() + img.Ext())

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	contentType := strings.TrimSpace(img.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, string(handle)))
	header.Set("Content-Type", contentType)
	part, err := form.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("comfy: build upload form: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", fmt.Errorf("comfy: write upload form: %w", err)
	}
	if err := form.WriteField("overwrite", "true"); err != nil {
		return "", fmt.Errorf("comfy: write upload form: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("comfy: close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload/image", &body)
	if err != nil {
		return "", fmt.Errorf("comfy: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUploadRejected, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError(domain.ErrUploadRejected, resp)
	}
	c.logger.Debug().Str("handle", string(handle)).Int("bytes", len(img.Data)).Msg("comfy: image uploaded")
	return handle, nil
}
