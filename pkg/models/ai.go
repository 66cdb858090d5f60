// Package models contains shared data models used across the textbrief codebase.
package models

import (
	"context"
	"net/http"
	"strings"
)

// ProviderID identifies one external LLM backend.
type ProviderID string

const (
	ProviderGoogle    ProviderID = "google"
	ProviderGroq      ProviderID = "groq"
	ProviderSambaNova ProviderID = "sambanova"
	ProviderCohere    ProviderID = "cohere"
)

// PriorityOrder is the automatic cascade order.
var PriorityOrder = []ProviderID{
	ProviderGoogle,
	ProviderSambaNova,
	ProviderGroq,
	ProviderCohere,
}

// ParseProviderID maps a caller-supplied name to a known ProviderID.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseProviderID(s string) (ProviderID, bool) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PriorityOrder {
		if id == known {
			return id, true
		}
	}
	return "", false
}

// ProviderAdapter is the core interface that every LLM backend integration must implement.
// It only describes the wire format; the cascade issues the HTTP call itself.
// Implementations must be safe for concurrent use.
type ProviderAdapter interface {
	// ID returns the provider identifier.
	ID() ProviderID
	// Models returns the model identifiers to try, in order.
	Models() []string
	// BuildRequest builds the provider-specific HTTP request for one model.
	BuildRequest(ctx context.Context, credential, model, text string) (*http.Request, error)
	// ExtractRawText pulls the model's textual answer out of a successful response body.
	ExtractRawText(body []byte) (string, error)
}

// AnalysisRequest is the input to a text analysis.
type AnalysisRequest struct {
	Text string
	// PreferredProvider is empty when the caller lets the cascade choose.
	PreferredProvider ProviderID
}
