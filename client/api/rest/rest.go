package rest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 64 << 10

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with %d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
}

type Client struct {
	logger  *logrus.Logger
	baseURL string
	cli     *http.Client
	backoff func() backoff.BackOff
}

type Option func(*Client)

// WithBackOff replaces the retry policy used for every request.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) {
		c.backoff = f
	}
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(cli *http.Client) Option {
	return func(c *Client) {
		c.cli = cli
	}
}

func NewClient(logger *logrus.Logger, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}

	c := &Client{
		logger:  logger,
		baseURL: u.String(),
		cli: &http.Client{
			Timeout: 5 * time.Minute,
		},
		backoff: func() backoff.BackOff {
			return newExponentialBackoffConfig()
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Upload stores data under filename and returns the download URL printed by the server.
// Disposable uploads are deleted by the server after their first download.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, disposable bool) (string, error) {
	elems := []string{url.PathEscape(filename)}
	if disposable {
		elems = []string{"d", url.PathEscape(filename)}
	}
	u, err := url.JoinPath(c.baseURL, elems...)
	if err != nil {
		return "", fmt.Errorf("create url: %w", err)
	}

	newRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("could not create upload request: %w", err)
		}
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	}

	body, err := c.doRequestWithRetry(newRequest, "Upload")
	if err != nil {
		return "", fmt.Errorf("failed to upload with retry: %w", err)
	}

	return strings.TrimSpace(string(body)), nil
}

// Download fetches the object behind a URL returned by Upload.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	newRequest := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return nil, fmt.Errorf("could not create download request: %w", err)
		}
		return req, nil
	}

	body, err := c.doRequestWithRetry(newRequest, "Download")
	if err != nil {
		return nil, fmt.Errorf("failed to download with retry: %w", err)
	}

	return body, nil
}

// doRequestWithRetry retries transport failures and gateway errors. Any other non-200 status is
// returned as a *StatusError without retrying.
func (c *Client) doRequestWithRetry(newRequest func() (*http.Request, error), method string) ([]byte, error) {
	logger := c.logger.WithField("method", method)

	return backoff.RetryWithData[[]byte](func() ([]byte, error) {
		req, err := newRequest()
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.cli.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, backoff.Permanent(fmt.Errorf("could not make http call: %w", err))
			}
			logger.WithError(err).Error("Failed to make http request, retrying...")
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		statusErr := &StatusError{
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(string(body)),
		}
		switch resp.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			logger.WithField("status", resp.StatusCode).Warn("Server is unavailable, retrying...")
			return nil, statusErr
		default:
			logger.WithField("resp", fmt.Sprintf("%q", statusErr.Message)).Error("Request failed with unexpected status code")
			return nil, backoff.Permanent(statusErr)
		}
	}, c.backoff())
}

func newExponentialBackoffConfig() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(time.Second*3),
		backoff.WithMaxInterval(time.Second),
		backoff.WithInitialInterval(time.Millisecond*100),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
	)
}
