package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// APIError is a normalized request failure. Status 0 means the failure
// happened before any HTTP response arrived (transport-level); anything
// else is the HTTP status the server answered with.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Details   string
	Timestamp time.Time
	Body      []byte

	cause error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("transport error: %s", e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap exposes the underlying transport error, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// IsRetryable reports whether the failure should trigger a retry:
// transport failures and the transient HTTP statuses.
func (e *APIError) IsRetryable() bool {
	switch e.Status {
	case 0, http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsServerError reports whether the server answered with a 5xx status.
func (e *APIError) IsServerError() bool {
	return e.Status >= 500
}

// responseEnvelope is the wrapper the backend puts around every JSON body.
type responseEnvelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp string          `json:"timestamp"`
}

// wireError covers the error body shapes the backend produces.
type wireError struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type requestOptions struct {
	retry  bool
	accept string
}

func defaultRequestOptions() requestOptions {
	return requestOptions{retry: true, accept: "application/json"}
}

// doRequest performs a single HTTP request and normalizes failures
// into *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, opt requestOptions) ([]byte, error) {
	fullURL := c.baseURL + c.pathPrefix + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", opt.accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{
			Status:    0,
			Message:   err.Error(),
			Timestamp: time.Now(),
			cause:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{
			Status:    0,
			Message:   "read response: " + err.Error(),
			Timestamp: time.Now(),
			cause:     err,
		}
	}

	if resp.StatusCode >= 400 {
		return nil, errorFromBody(resp.StatusCode, body)
	}

	return body, nil
}

// errorFromBody builds an APIError, preserving server-provided code and
// message when the body carries them.
func errorFromBody(status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now(),
		Body:      body,
	}

	var we wireError
	if err := json.Unmarshal(body, &we); err == nil {
		switch {
		case we.Detail != "":
			apiErr.Message = we.Detail
		case we.Error != "":
			apiErr.Message = we.Error
		case we.Message != "":
			apiErr.Message = we.Message
		}
		apiErr.Code = we.Code
		if we.Detail != "" && we.Message != "" {
			apiErr.Details = we.Message
		}
	}

	return apiErr
}

// doWithRetry performs a request with exponential backoff. The delay
// doubles after every attempt and carries no jitter, so retry timing
// stays deterministic.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values, opt requestOptions) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"backoff", backoff,
				"path", path,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
		}

		body, err := c.doRequest(ctx, method, path, query, opt)
		if err == nil {
			return body, nil
		}

		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.IsRetryable() || !opt.retry {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a GET, unwraps the response envelope, and decodes the
// data payload into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	return c.call(ctx, http.MethodGet, path, query, result, defaultRequestOptions())
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, result any, opt requestOptions) error {
	body, err := c.doWithRetry(ctx, method, path, query, opt)
	if err != nil {
		return err
	}

	var env responseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return &APIError{
			Status:    http.StatusOK,
			Message:   msg,
			Details:   env.Message,
			Timestamp: time.Now(),
			Body:      body,
		}
	}

	if result == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("unmarshal response data: %w", err)
	}

	return nil
}
