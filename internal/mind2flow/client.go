// Package mind2flow is a client for the Mind2Flow WhatsApp bridge HTTP API.
package mind2flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidEndpoint is returned when a configured endpoint is not an absolute http(s) URL.
var ErrInvalidEndpoint = errors.New("invalid api endpoint")

// maxErrorBody bounds how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// APIError is a non-2xx response from the bridge.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("mind2flow: http %d", e.StatusCode)
	}
	return fmt.Sprintf("mind2flow: http %d: %s", e.StatusCode, e.Body)
}

// Credentials select the bridge endpoint and authenticate against it.
type Credentials struct {
	Endpoint  string
	APIKey    string
	APISecret string
}

// SendRequest is a text message to one phone number.
type SendRequest struct {
	PhoneNumber string
	Message     string
}

// SendResult carries the bridge's correlation id when it returned one.
type SendResult struct {
	ExternalID string
}

// HasExternalID reports whether the bridge returned a correlation id.
func (r SendResult) HasExternalID() bool {
	return r.ExternalID != ""
}

// Client talks to the bridge over HTTP.
type Client struct {
	http *http.Client
}

// New creates a client. A nil httpClient gets one with the given timeout;
// a zero timeout leaves requests unbounded.
func New(httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{http: httpClient}
}

// ValidateEndpoint parses raw and checks it is an absolute http or https URL.
func ValidateEndpoint(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	return u, nil
}

// sendBody is the POST payload. Credentials travel in the body, not headers.
type sendBody struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	APIKey      string `json:"apiKey,omitempty"`
	APISecret   string `json:"apiSecret,omitempty"`
}

// correlationID accepts a JSON string or number.
type correlationID string

func (c *correlationID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = correlationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = correlationID(n.String())
	return nil
}

type sendResponse struct {
	MessageID correlationID `json:"message_id"`
	ID        correlationID `json:"id"`
}

// ExtractExternalID returns the correlation id of a send response body:
// message_id if present, else id, else "". Bodies that are not JSON objects yield "".
func ExtractExternalID(body []byte) string {
	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	if resp.MessageID != "" {
		return string(resp.MessageID)
	}
	return string(resp.ID)
}

// Send posts a message to the bridge. Any non-2xx status is an *APIError.
func (c *Client) Send(ctx context.Context, creds Credentials, req SendRequest) (SendResult, error) {
	u, err := ValidateEndpoint(creds.Endpoint)
	if err != nil {
		return SendResult{}, err
	}

	payload, err := json.Marshal(sendBody{
		PhoneNumber: req.PhoneNumber,
		Message:     req.Message,
		APIKey:      creds.APIKey,
		APISecret:   creds.APISecret,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("encode send body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return SendResult{}, fmt.Errorf("build send request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return SendResult{}, err
	}
	return SendResult{ExternalID: ExtractExternalID(body)}, nil
}

// TestConnection calls GET {endpoint}/test with the credentials as headers.
func (c *Client) TestConnection(ctx context.Context, creds Credentials) error {
	u, err := ValidateEndpoint(creds.Endpoint)
	if err != nil {
		return err
	}
	u = u.JoinPath("test")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build test request: %w", err)
	}
	if creds.APIKey != "" {
		httpReq.Header.Set("X-API-Key", creds.APIKey)
	}
	if creds.APISecret != "" {
		httpReq.Header.Set("X-API-Secret", creds.APISecret)
	}

	_, err = c.do(httpReq)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mind2flow %s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// Reason renders a dispatch error as a short human-readable string.
func Reason(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return "bridge returned http " + strconv.Itoa(apiErr.StatusCode)
	case errors.Is(err, ErrInvalidEndpoint):
		return "invalid api endpoint"
	case errors.Is(err, context.DeadlineExceeded):
		return "bridge request timed out"
	default:
		return "bridge unreachable"
	}
}
