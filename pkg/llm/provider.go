// Package llm provides abstractions for LLM provider integration.
//
// The form-mapping step is the only LLM consumer in the pipeline: it sends
// an extracted form structure plus instructions and expects one JSON
// document back. Providers therefore expose a simple blocking Complete
// call rather than a streaming interface.
package llm

import (
	"context"

	"github.com/entrhq/formpilot/pkg/types"
)

// Provider defines the interface for LLM integrations.
//
// Providers handle API communication with LLM services and nothing else;
// prompt construction and response validation belong to the caller. This
// keeps providers reusable and testable independently of pipeline logic.
type Provider interface {
	// Complete sends messages to the LLM and returns the full response.
	//
	// The returned message's content is untrusted model output; callers
	// must validate it before constructing domain objects from it.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModel returns the model name being used.
	GetModel() string

	// GetModelInfo returns information about the LLM model being used.
	GetModelInfo() *types.ModelInfo
}
