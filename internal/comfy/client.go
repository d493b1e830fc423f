// Package comfy talks to the external image-generation engine: it uploads
// input images, queues workflow jobs, polls job history and reads back the
// produced artifacts.
package comfy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"persona/internal/infra"
)

const (
	defaultBaseURL      = "http://127.0.0.1:8188"
	defaultPollInterval = time.Second
	defaultPollAttempts = 60
	maxErrorBody        = 4 << 10
)

// Options configures the engine client.
type Options struct {
	BaseURL        string
	ClientID       string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	PollInterval   time.Duration
	PollAttempts   int
}

// Client performs HTTP calls against a single engine instance.
type Client struct {
	baseURL      string
	clientID     string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
	pollAttempts int
}

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = uuid.NewString()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: interval,
		pollAttempts: attempts,
	}
}

// BaseURL returns the engine endpoint the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func readErrorBody(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return strings.TrimSpace(string(raw))
}

func statusError(sentinel error, resp *http.Response) error {
	return fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, readErrorBody(resp))
}
