package google

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/sjson"

	"github.com/kiranshivaraju/textbrief/internal/ai/wire"
	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// MaxChars is the input budget for Gemini prompts.
const MaxChars = 30000

const textPath = "candidates.0.content.parts.0.text"

const bodyTemplate = `{"contents":[{"parts":[{"text":""}]}],"generationConfig":{"responseMimeType":"application/json"}}`

// Adapter implements models.ProviderAdapter for the Gemini generateContent API.
type Adapter struct {
	cfg      config.ProviderConfig
	language string
}

func NewAdapter(cfg config.ProviderConfig, language string) *Adapter {
	return &Adapter{cfg: cfg, language: language}
}

func (a *Adapter) ID() models.ProviderID { return models.ProviderGoogle }

func (a *Adapter) Models() []string { return a.cfg.Models }

func (a *Adapter) BuildRequest(ctx context.Context, credential, model, text string) (*http.Request, error) {
	body, err := sjson.SetBytes([]byte(bodyTemplate), "contents.0.parts.0.text", wire.Build(a.language, text, MaxChars))
	if err != nil {
		return nil, fmt.Errorf("encoding google request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.cfg.BaseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating google request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", credential)
	return req, nil
}

func (a *Adapter) ExtractRawText(body []byte) (string, error) {
	return wire.ExtractString(body, textPath)
}

var _ models.ProviderAdapter = (*Adapter)(nil)
