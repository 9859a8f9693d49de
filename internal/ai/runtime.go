package ai

import "context"

// Runtime is the completion backend used by the advisor. *Client
// implements it; tests substitute fakes.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

var _ Runtime = (*Client)(nil)
