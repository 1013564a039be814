package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Webhook delivers messages by POSTing them to an HTTP endpoint. Useful
// for local development and as a stand-in chat service in staging. The
// base URL is injected from config so tests can point to a local mock.
type Webhook struct {
	baseURL    string
	httpClient *http.Client
}

// sendRequest is the JSON body posted to the endpoint.
type sendRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// sendResponse maps the endpoint's 202 Accepted response body.
type sendResponse struct {
	MessageID string `json:"messageId"`
}

func NewWebhook(baseURL string, timeout time.Duration) *Webhook {
	return &Webhook{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the message to the configured URL and expects a 202 Accepted
// response with a JSON body containing messageId.
func (w *Webhook) Send(ctx context.Context, recipient, text string) (string, error) {
	body, err := json.Marshal(sendRequest{
		To:      recipient,
		Content: text,
	})
	if err != nil {
		return "", Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", classifyWebhookStatus(resp)
	}

	var sendResp sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return sendResp.MessageID, nil
}

// classifyWebhookStatus maps non-202 responses onto the retry contract.
// 429 carries the Retry-After header as a delay hint when present; other
// 4xx responses are permanent; 5xx stays retryable.
func classifyWebhookStatus(resp *http.Response) error {
	err := fmt.Errorf("unexpected endpoint status: %d", resp.StatusCode)

	if resp.StatusCode == http.StatusTooManyRequests {
		if secs, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil && secs > 0 {
			return RetryAfter(err, time.Duration(secs)*time.Second)
		}
		return err
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return Permanent(err)
	}
	return err
}

// compile-time check that Webhook implements Transport
var _ Transport = (*Webhook)(nil)
