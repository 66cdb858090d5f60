package mock

import (
	"bytes"
	"context"
	"net/http"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/kiranshivaraju/textbrief/internal/ai/wire"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// OutputPath is where Adapter expects the raw text in a response body.
const OutputPath = "output"

// Adapter satisfies models.ProviderAdapter for testing. By default it POSTs
// {"model","text"} to BaseURL/{model} and reads the "output" field.
type Adapter struct {
	ProviderID models.ProviderID
	ModelList  []string
	BaseURL    string

	BuildFunc   func(ctx context.Context, credential, model, text string) (*http.Request, error)
	ExtractFunc func(body []byte) (string, error)

	mu    sync.Mutex
	built []string
}

// NewAdapter returns an Adapter for id served by baseURL, e.g. an httptest.Server.
func NewAdapter(id models.ProviderID, baseURL string, modelList ...string) *Adapter {
	if len(modelList) == 0 {
		modelList = []string{"mock-v1"}
	}
	return &Adapter{ProviderID: id, ModelList: modelList, BaseURL: baseURL}
}

func (a *Adapter) ID() models.ProviderID { return a.ProviderID }

func (a *Adapter) Models() []string { return a.ModelList }

func (a *Adapter) BuildRequest(ctx context.Context, credential, model, text string) (*http.Request, error) {
	a.mu.Lock()
	a.built = append(a.built, model)
	a.mu.Unlock()

	if a.BuildFunc != nil {
		return a.BuildFunc(ctx, credential, model, text)
	}

	body, _ := sjson.SetBytes([]byte(`{}`), "model", model)
	body, _ = sjson.SetBytes(body, "text", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/"+model, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	return req, nil
}

func (a *Adapter) ExtractRawText(body []byte) (string, error) {
	if a.ExtractFunc != nil {
		return a.ExtractFunc(body)
	}
	return wire.ExtractString(body, OutputPath)
}

// Built returns the models BuildRequest was called with, in call order.
func (a *Adapter) Built() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.built...)
}

var _ models.ProviderAdapter = (*Adapter)(nil)
