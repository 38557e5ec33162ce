package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-device-link/internal/errors"
)

// maxImageBytes is the largest upstream image accepted. Anything bigger is
// rejected rather than truncated.
const maxImageBytes = 20 << 20

// PlaceholderClient fetches images from a picsum style API: GET {base}/{w}/{h}/
type PlaceholderClient struct {
	baseURL    string
	httpClient *http.Client
	maxBytes   int64
}

type PlaceholderOption func(*PlaceholderClient)

func WithMaxImageBytes(n int64) PlaceholderOption {
	return func(c *PlaceholderClient) {
		c.maxBytes = n
	}
}

func NewPlaceholderClient(baseURL string, timeout time.Duration, opts ...PlaceholderOption) *PlaceholderClient {
	c := &PlaceholderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxImageBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PlaceholderClient) Fetch(ctx context.Context, width, height int) ([]byte, error) {
	url := fmt.Sprintf("%s/%d/%d/", c.baseURL, width, height)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "building request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(errors.ErrUpstream, "GET %s returned %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstream, "reading %s: %v", url, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, errors.Wrapf(errors.ErrUpstream, "GET %s exceeds %d bytes", url, c.maxBytes)
	}
	return data, nil
}
