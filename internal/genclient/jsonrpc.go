package genclient

import "encoding/json"

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// JSONRPCRequest is a JSON-RPC 2.0 request envelope.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response envelope.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Standard JSON-RPC error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603

	// Generation-service error codes.
	ErrCodeGenerationRefused = -32010
	ErrCodeGenerationBusy    = -32011
)

// MethodGenerate is the content-generation RPC method.
const MethodGenerate = "content/generate"

// GenerateParams is the wire form of a generation request.
type GenerateParams struct {
	ProjectID   string          `json:"projectId"`
	ProjectName string          `json:"projectName,omitempty"`
	Stage       string          `json:"stage"`
	Preamble    string          `json:"preamble,omitempty"`
	Inputs      []GenerateInput `json:"inputs,omitempty"`
}

// GenerateInput is one predecessor artifact carried as generation context.
type GenerateInput struct {
	Stage   string `json:"stage"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// GenerateResult is the wire form of a generation response.
type GenerateResult struct {
	Content string `json:"content"`
}
