package exercises

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client calls a remote exercise endpoint, e.g. before a session starts.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Update(ctx context.Context, names []string) (int64, error) {
	if len(names) == 0 {
		return 0, ErrorNoExercises
	}

	body, err := json.Marshal(&Request{Exercises: names})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+Path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to post %w", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode %d response %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return 0, fmt.Errorf("%s: %s (status %d)", out.Message, out.Error, resp.StatusCode)
		}

		return 0, fmt.Errorf("%s (status %d)", out.Message, resp.StatusCode)
	}

	if out.AffectedRows == nil {
		return 0, nil
	}

	return *out.AffectedRows, nil
}
