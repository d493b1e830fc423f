package comfy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"persona/internal/domain"
)

// ImageRef points at a file the engine produced.
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput is what a single node produced.
type NodeOutput struct {
	Images []ImageRef `json:"images"`
}

// HistoryStatus is the engine's execution summary for a job.
type HistoryStatus struct {
	StatusStr string `json:"status_str"`
	Completed bool   `json:"completed"`
}

// HistoryEntry is the engine's record of a finished job.
type HistoryEntry struct {
	Outputs map[string]NodeOutput `json:"outputs"`
	Status  *HistoryStatus        `json:"status,omitempty"`
}

// PollResult is the outcome of Poll. TimedOut is set when the retry budget
// ran out before the job appeared; Entry is nil in that case.
type PollResult struct {
	Entry    *HistoryEntry
	Attempts int
	TimedOut bool
}

// Output returns the first image produced by nodeID.
func (r PollResult) Output(nodeID string) (ImageRef, error) {
	if r.TimedOut || r.Entry == nil {
		return ImageRef{}, domain.ErrPollTimeout
	}
	if r.Entry.Status != nil && strings.EqualFold(r.Entry.Status.StatusStr, "error") {
		return ImageRef{}, fmt.Errorf("%w: engine reported an execution error", domain.ErrUnexpectedResult)
	}
	out, ok := r.Entry.Outputs[nodeID]
	if !ok {
		return ImageRef{}, fmt.Errorf("%w: output node %s missing", domain.ErrUnexpectedResult, nodeID)
	}
	if len(out.Images) == 0 || strings.TrimSpace(out.Images[0].Filename) == "" {
		return ImageRef{}, fmt.Errorf("%w: output node %s produced no image", domain.ErrUnexpectedResult, nodeID)
	}
	return out.Images[0], nil
}

// History queries the engine once. found is false while the job is still
// pending.
func (c *Client) History(ctx context.Context, promptID string) (entry *HistoryEntry, found bool, err error) {
	endpoint := c.baseURL + "/history/" + url.PathEscape(promptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("comfy: build history request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("comfy: history request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("comfy: history status %d: %s", resp.StatusCode, readErrorBody(resp))
	}
	var history map[string]HistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, false, fmt.Errorf("comfy: decode history: %w", err)
	}
	got, ok := history[promptID]
	if !ok {
		return nil, false, nil
	}
	return &got, true, nil
}

// Poll queries job history every poll interval until the job appears or the
// configured number of attempts has been made. Running out of attempts is
// reported through PollResult.TimedOut, not as an error; the error is only
// set when ctx ends first.
func (c *Client) Poll(ctx context.Context, promptID string) (PollResult, error) {
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		entry, found, err := c.History(ctx, promptID)
		switch {
		case err != nil && ctx.Err() != nil:
			return PollResult{Attempts: attempt}, ctx.Err()
		case err != nil:
			c.logger.Warn().Err(err).Str("prompt_id", promptID).Int("attempt", attempt).Msg("comfy: history lookup failed")
		case found:
			c.logger.Debug().Str("prompt_id", promptID).Int("attempt", attempt).Msg("comfy: job finished")
			return PollResult{Entry: entry, Attempts: attempt}, nil
		}
		if attempt < c.pollAttempts {
			if err := sleepCtx(ctx, c.pollInterval); err != nil {
				return PollResult{Attempts: attempt}, err
			}
		}
	}
	c.logger.Warn().Str("prompt_id", promptID).Int("attempts", c.pollAttempts).Msg("comfy: max retries reached")
	return PollResult{Attempts: c.pollAttempts, TimedOut: true}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
