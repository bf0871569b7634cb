package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// timeout for identity requests
const identityRequestTimeout = 10 * time.Second

// acquires anonymous identities from the REST API
type RestClient struct {
	endpoint   string
	httpClient *http.Client
}

// creates a new REST client
func NewRestClient() *RestClient {
	endpoint := os.Getenv("ANONCHAT_API_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:8080"
	}

	return &RestClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: identityRequestTimeout,
		},
	}
}

type anonymousResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// requests a fresh anonymous identity
func (c *RestClient) AcquireIdentity(ctx context.Context) (*anonymousResponse, error) {
	url := fmt.Sprintf("%s/api/v1/auth/anonymous", c.endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("%s: %s", errResp.Error, errResp.Message)
		}
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result anonymousResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &result, nil
}
