package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for provider client operations.
var (
	// ErrBaseURLRequired is returned when the base URL is not provided.
	ErrBaseURLRequired = errors.New("provider: base URL is required")
	// ErrNoVideoURL is returned when a generation response carries no
	// video URL.
	ErrNoVideoURL = errors.New("provider: response missing video_url field")
	// ErrGenerateFailed is returned when the provider reports a
	// generation failure.
	ErrGenerateFailed = errors.New("provider: generation failed")
	// ErrServerError is returned when the provider answers with a 5xx
	// status code.
	ErrServerError = errors.New("provider: server error")
	// ErrRateLimited is returned when the provider answers with a 429
	// status code.
	ErrRateLimited = errors.New("provider: rate limited")
	// ErrRequestFailed is returned when the request fails with another
	// non-2xx status code.
	ErrRequestFailed = errors.New("provider: request failed")
	// ErrDownloadFailed is returned when a rendered video cannot be
	// fetched from the URL the provider returned.
	ErrDownloadFailed = errors.New("provider: download failed")
)

// Client defines the interface for talking to an AI video provider.
type Client interface {
	// Generate submits a generation request and returns the result,
	// including the URL of the rendered video.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)

	// Download fetches a rendered video from the given URL. The caller
	// owns the returned reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// HTTPClient is the HTTP implementation of the provider Client interface.
type HTTPClient struct {
	baseURL      string
	endpointPath string
	apiKey       string
	extraHeaders map[string]string
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the bearer token used for authentication. Providers
// without authentication can leave it unset.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithEndpointPath sets the path of the generation endpoint relative to
// the base URL.
func WithEndpointPath(path string) ClientOption {
	return func(hc *HTTPClient) {
		hc.endpointPath = path
	}
}

// WithExtraHeaders sets additional headers sent on every request.
func WithExtraHeaders(headers map[string]string) ClientOption {
	return func(hc *HTTPClient) {
		hc.extraHeaders = headers
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new provider HTTP client. The API key can be set
// via the WithAPIKey option; if not provided, it is read from the
// AI_PROVIDER_API_KEY environment variable. An empty key is allowed for
// unauthenticated providers.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &HTTPClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		endpointPath: "generate",
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		maxRetries:   3,
		baseBackoff:  1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("AI_PROVIDER_API_KEY")
	}

	return c, nil
}

// Generate submits a generation request and returns the result.
func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	bodyBytes, err := json.Marshal(req.toBody())
	if err != nil {
		return GenerateResult{}, fmt.Errorf("provider: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(c.endpointPath, "/"))

	var resp generateResponse
	raw, err := c.doRequestWithRetry(ctx, http.MethodPost, url, bodyBytes, &resp)
	if err != nil {
		return GenerateResult{}, err
	}

	if resp.VideoURL == "" {
		if resp.Error != "" {
			return GenerateResult{}, fmt.Errorf("%w: %s", ErrGenerateFailed, resp.Error)
		}
		return GenerateResult{}, ErrNoVideoURL
	}

	return GenerateResult{
		VideoURL:       resp.VideoURL,
		RequestPayload: string(bodyBytes),
		ResponseRaw:    string(raw),
	}, nil
}

// Download fetches a rendered video from the given URL.
func (c *HTTPClient) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: create download request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w with status %d", ErrDownloadFailed, resp.StatusCode)
	}
	return resp.Body, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff
// retry and returns the raw response body.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) ([]byte, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("provider: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		raw, err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return raw, nil
		}

		if !isRetryable(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("provider: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("provider: create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("provider: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("provider: read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return nil, &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("provider: unmarshal response: %w", err)
		}
	}

	return respBody, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
