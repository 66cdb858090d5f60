package cohere

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/sjson"

	"github.com/kiranshivaraju/textbrief/internal/ai/wire"
	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// MaxChars is the input budget for Cohere prompts.
const MaxChars = 20000

// Adapter implements models.ProviderAdapter for the Cohere v1 chat API.
type Adapter struct {
	cfg      config.ProviderConfig
	language string
}

func NewAdapter(cfg config.ProviderConfig, language string) *Adapter {
	return &Adapter{cfg: cfg, language: language}
}

func (a *Adapter) ID() models.ProviderID { return models.ProviderCohere }

func (a *Adapter) Models() []string { return a.cfg.Models }

func (a *Adapter) BuildRequest(ctx context.Context, credential, model, text string) (*http.Request, error) {
	body := []byte(`{}`)
	var err error
	for _, kv := range []struct{ path, value string }{
		{"model", model},
		{"message", wire.Build(a.language, text, MaxChars)},
		{"preamble", wire.Preamble},
	} {
		if body, err = sjson.SetBytes(body, kv.path, kv.value); err != nil {
			return nil, fmt.Errorf("encoding cohere request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating cohere request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	return req, nil
}

func (a *Adapter) ExtractRawText(body []byte) (string, error) {
	return wire.ExtractString(body, "text")
}

var _ models.ProviderAdapter = (*Adapter)(nil)
