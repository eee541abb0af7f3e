// Package assistant relays chat messages to the project assistant webhook.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyMessage is returned when there is nothing to send.
var ErrEmptyMessage = errors.New("message is empty")

// maxReplyBytes caps how much of a webhook reply is read.
const maxReplyBytes = 1 << 20

// Client posts messages to a webhook and extracts the reply text.
type Client struct {
	client *http.Client
	url    string
}

// NewClient constructs a Client for the webhook endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		client: &http.Client{Timeout: timeout},
		url:    strings.TrimSpace(endpoint),
	}
}

// Ask sends message and returns the assistant's reply.
func (c *Client) Ask(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", &WebhookError{Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", err
	}
	return ExtractReply(raw)
}

// replyFields are tried in order when the webhook answers with an object.
var replyFields = []string{"output", "message", "text"}

// ExtractReply reads the reply text out of a webhook response body: a JSON
// string is used as is, an object yields its first non-empty output, message
// or text field, and any other JSON value is returned verbatim.
func ExtractReply(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode assistant reply: %w", err)
	}

	switch v := decoded.(type) {
	case string:
		return v, nil
	case map[string]any:
		for _, key := range replyFields {
			if text, ok := v[key].(string); ok && text != "" {
				return text, nil
			}
		}
	}
	return string(raw), nil
}

// WebhookError represents a non-successful webhook response.
type WebhookError struct {
	Status int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("assistant webhook failed with status %d %s", e.Status, http.StatusText(e.Status))
}
