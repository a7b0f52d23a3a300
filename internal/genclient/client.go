// Package genclient is the production ContentGenerator: a JSON-RPC/HTTP
// client for an external generation service. The pipeline owns retries; the
// client only classifies failures into the pipeline's error taxonomy.
package genclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dusk-indust/agentforge/internal/pipeline"
)

// Compile-time interface check.
var _ pipeline.ContentGenerator = (*Client)(nil)

// Client implements pipeline.ContentGenerator over HTTP/JSON-RPC.
type Client struct {
	endpoint  string
	http      *http.Client
	requestID atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a generation client for the given endpoint URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("genclient: endpoint is required")
	}
	c := &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate requests candidate content for one stage via the content/generate
// JSON-RPC method. Deadline expiries surface as *pipeline.
// GenerationTimeoutError (retriable); an explicit service refusal surfaces
// as *pipeline.GenerationRejectedError (not retriable within a run).
func (c *Client) Generate(ctx context.Context, req pipeline.GenerationRequest) (string, error) {
	params := GenerateParams{
		ProjectID:   req.ProjectID,
		ProjectName: req.ProjectName,
		Stage:       string(req.Stage),
		Preamble:    req.Preamble,
	}
	for _, in := range req.Inputs {
		params.Inputs = append(params.Inputs, GenerateInput{
			Stage:   string(in.Stage),
			Name:    in.Name,
			Content: in.Content,
		})
	}

	var result GenerateResult
	if err := c.call(ctx, MethodGenerate, params, &result); err != nil {
		return "", c.classify(req.Stage, err)
	}
	if result.Content == "" {
		return "", &pipeline.GenerationRejectedError{
			Stage:  req.Stage,
			Reason: "generation service returned empty content",
		}
	}
	return result.Content, nil
}

// classify maps transport and RPC failures onto the pipeline error taxonomy.
func (c *Client) classify(stage pipeline.Stage, err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == ErrCodeGenerationRefused {
			return &pipeline.GenerationRejectedError{Stage: stage, Reason: rpcErr.Message}
		}
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &pipeline.GenerationTimeoutError{Stage: stage, Attempts: 1, Err: err}
	}
	return err
}

// nextID returns a monotonically increasing request ID for JSON-RPC calls.
func (c *Client) nextID() int64 {
	return c.requestID.Add(1)
}

// call performs a JSON-RPC 2.0 call over HTTP POST.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("genclient: marshal params: %w", err)
	}

	rpcReq := JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      c.nextID(),
		Method:  method,
		Params:  paramsJSON,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return fmt.Errorf("genclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("genclient: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("genclient: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("genclient: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("genclient: %s: HTTP %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("genclient: decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
			Data:    rpcResp.Error.Data,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("genclient: decode result: %w", err)
		}
	}

	return nil
}

// RPCError represents a JSON-RPC error returned by the generation service.
type RPCError struct {
	Method  string
	Code    int
	Message string
	Data    json.RawMessage
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("genclient: %s: rpc error %d: %s (data: %s)", e.Method, e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("genclient: %s: rpc error %d: %s", e.Method, e.Code, e.Message)
}
