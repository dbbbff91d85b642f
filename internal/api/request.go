package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TransportError represents a network failure, timeout or non-2xx response.
type TransportError struct {
	StatusCode int    // 0 when no response was received
	Message    string
	Body       []byte
	Err        error // underlying network error, if any
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("robinhood transport error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("robinhood api error %d: %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if a later attempt could succeed.
func (e *TransportError) IsRetryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ParseError represents a response body that could not be decoded or failed validation.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// OrderRejectedError is returned when the exchange refuses an order submission.
type OrderRejectedError struct {
	ClientOrderID string
	StatusCode    int
	Reason        string
	Err           error
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order %s rejected (%d): %s", e.ClientOrderID, e.StatusCode, e.Reason)
}

func (e *OrderRejectedError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsParse reports whether err is a *ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// validator is implemented by response types that check their own shape.
type validator interface {
	validate() error
}

// errorResponse is the body of a 4xx response.
type errorResponse struct {
	Type   string `json:"type"`
	Errors []struct {
		Detail string `json:"detail"`
		Attr   string `json:"attr"`
	} `json:"errors"`
}

// errorDetail extracts a readable message from an error body.
func errorDetail(status int, body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && len(er.Errors) > 0 {
		parts := make([]string, 0, len(er.Errors))
		for _, e := range er.Errors {
			if e.Attr != "" {
				parts = append(parts, e.Attr+": "+e.Detail)
			} else {
				parts = append(parts, e.Detail)
			}
		}
		return strings.Join(parts, "; ")
	}
	return http.StatusText(status)
}

// queryParams joins repeated key=value pairs. No values means no query string,
// which the API treats as "all".
func queryParams(key string, values ...string) string {
	if len(values) == 0 {
		return ""
	}

	params := make([]string, 0, len(values))
	for _, v := range values {
		params = append(params, key+"="+url.QueryEscape(v))
	}

	return "?" + strings.Join(params, "&")
}

// doRequest signs and performs an HTTP request. path includes any query string
// and is exactly what gets signed.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	headers, err := c.signer.SignRequest(method, path, string(body))
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("api request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Message: "do request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: 0, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Message:    errorDetail(resp.StatusCode, respBody),
			Body:       respBody,
		}
	}

	return respBody, nil
}

// decode unmarshals and validates a response body.
func decode(op string, body []byte, result any) error {
	if err := json.Unmarshal(body, result); err != nil {
		return &ParseError{Op: op, Err: err}
	}
	if v, ok := result.(validator); ok {
		if err := v.validate(); err != nil {
			return &ParseError{Op: op, Err: err}
		}
	}
	return nil
}

// get performs a signed GET request and decodes the response.
func (c *Client) get(ctx context.Context, op, path string, result any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(op, body, result)
}

// post performs a signed POST request. result may be nil when the body is ignored.
func (c *Client) post(ctx context.Context, op, path string, payload []byte, result any) error {
	body, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	return decode(op, body, result)
}

// requestURI converts a pagination cursor (absolute URL) to a signable path.
func requestURI(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("parse cursor %q: %w", next, err)
	}
	return u.RequestURI(), nil
}
