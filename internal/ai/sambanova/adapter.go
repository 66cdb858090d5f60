package sambanova

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/textbrief/internal/ai/wire"
	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// MaxChars is the input budget for SambaNova prompts.
const MaxChars = 15000

const temperature = 0.1

// Adapter implements models.ProviderAdapter for SambaNova Cloud.
// SambaNova does not reliably honour response_format, so none is sent.
type Adapter struct {
	cfg      config.ProviderConfig
	language string
}

func NewAdapter(cfg config.ProviderConfig, language string) *Adapter {
	return &Adapter{cfg: cfg, language: language}
}

func (a *Adapter) ID() models.ProviderID { return models.ProviderSambaNova }

func (a *Adapter) Models() []string { return a.cfg.Models }

func (a *Adapter) BuildRequest(ctx context.Context, credential, model, text string) (*http.Request, error) {
	temp := temperature
	body, err := wire.ChatCompletionBody(model, wire.Build(a.language, text, MaxChars), wire.ChatOptions{Temperature: &temp})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating sambanova request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	return req, nil
}

func (a *Adapter) ExtractRawText(body []byte) (string, error) {
	return wire.ExtractString(body, wire.ChatContentPath)
}

var _ models.ProviderAdapter = (*Adapter)(nil)
