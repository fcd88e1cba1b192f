// Package pdf talks to the external PDF render service.
package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// Client posts export requests to a render endpoint and returns the PDF body.
type Client struct {
	url    string
	client *http.Client
}

var _ port.PDFRenderer = (*Client)(nil)

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{url: url, client: &http.Client{Timeout: timeout}}
}

func (c *Client) Render(ctx context.Context, req domain.ExportRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/pdf")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("render service returned an empty document")
	}
	return data, nil
}
