package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"duplicator/internal/constants"
)

// HTTPContent fetches attachment bytes from the platform CDN on demand.
type HTTPContent struct {
	URL    string
	client *http.Client
}

func NewHTTPContent(url string, client *http.Client) *HTTPContent {
	if client == nil {
		client = newHTTPClient()
	}
	return &HTTPContent{URL: url, client: client}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
}

func (c *HTTPContent) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment: %w", err)
	}

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		resp.Body.Close()
		return nil, fmt.Errorf("attachment fetch returned status: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
