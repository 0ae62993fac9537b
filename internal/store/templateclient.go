package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// TemplateClient is a thin HTTP wrapper over the external HTML template
// service (out of scope per spec.md §1 beyond this interface): given a
// template name, it returns the rendered HTML bytes.
type TemplateClient struct {
	baseURL string
	client  *http.Client
}

// NewTemplateClient constructs a client against baseURL.
func NewTemplateClient(baseURL string) *TemplateClient {
	return &TemplateClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetTemplate retrieves the rendered HTML for name. Returns
// ErrTemplateNotFound on a 404 response.
func (c *TemplateClient) GetTemplate(ctx context.Context, name string) ([]byte, error) {
	reqURL := c.baseURL + "/templates/" + url.PathEscape(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build template request: %v", ErrUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch template %s: %v", ErrUnavailable, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: template %s", ErrTemplateNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: template %s returned status %d", ErrUnavailable, name, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read template %s body: %v", ErrUnavailable, name, err)
	}
	return data, nil
}
