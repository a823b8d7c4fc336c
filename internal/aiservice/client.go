package aiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ProcessPath is the endpoint served by NewHandler.
const ProcessPath = "/v1/process"

// DefaultTimeout bounds a call when neither the caller nor the client sets one.
const DefaultTimeout = 30 * time.Second

// HTTPClient calls a remote service speaking JSON over HTTP. Byte fields are
// base64 encoded by encoding/json.
type HTTPClient struct {
	BaseURL string
	Timeout time.Duration
	HTTP    *http.Client
}

// NewHTTPClient returns a client for the service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout, HTTP: &http.Client{}}
}

type errorBody struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// Process posts req and classifies failures: transport errors become
// unreachable, deadline expiry becomes timeout, non-2xx becomes rejected.
func (c *HTTPClient) Process(ctx context.Context, req Request) (Response, error) {
	if err := Validate(req); err != nil {
		return Response{}, err
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, &Error{Reason: ReasonInvalidRequest, Err: err}
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+ProcessPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, &Error{Reason: ReasonUnreachable, Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(hreq)
	if err != nil {
		return Response{}, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, classifyTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &eb) == nil && eb.Message != "" {
			msg = eb.Message
		}
		return Response{}, &Error{Reason: ReasonRejected, Status: resp.StatusCode, Message: msg}
	}
	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return Response{}, &Error{Reason: ReasonInvalidResponse, Status: resp.StatusCode, Err: err}
	}
	if len(out.Image) == 0 {
		return Response{}, &Error{Reason: ReasonInvalidResponse, Status: resp.StatusCode, Message: "empty image"}
	}
	return out, nil
}

func classifyTransport(ctx context.Context, err error) error {
	if cerr := contextError(ctx); cerr != nil {
		return cerr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Reason: ReasonTimeout, Err: err}
	}
	return &Error{Reason: ReasonUnreachable, Err: fmt.Errorf("post %s: %w", ProcessPath, err)}
}
