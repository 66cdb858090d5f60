package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/textbrief/internal/ai/mock"
	"github.com/kiranshivaraju/textbrief/internal/config"
	"github.com/kiranshivaraju/textbrief/internal/upstream"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

const goodAnalysis = `{"summary":"s","keyPoints":"- k","suggestedTags":["t"]}`

// --- helpers ---

// fakeUpstream serves every mock adapter from one httptest.Server. Replies are
// keyed by "/{provider}/{model}"; unknown paths answer 404.
type fakeUpstream struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []string
	replies map[string]http.HandlerFunc
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{replies: map[string]http.HandlerFunc{}}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.URL.Path)
		h, ok := f.replies[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeUpstream) reply(path string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = h
}

func (f *fakeUpstream) output(path, raw string) {
	f.reply(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"output":%q}`, raw)
	})
}

func (f *fakeUpstream) status(path string, code int) {
	f.reply(path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
		w.Write([]byte("upstream says no"))
	})
}

func (f *fakeUpstream) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// newTestCascade wires one mock adapter per provider in ids, all credentialed.
func newTestCascade(f *fakeUpstream, opts CascadeOptions, ids ...models.ProviderID) (*Cascade, map[models.ProviderID]*mock.Adapter) {
	adapters := make([]models.ProviderAdapter, 0, len(ids))
	creds := map[models.ProviderID]string{}
	byID := map[models.ProviderID]*mock.Adapter{}
	for _, id := range ids {
		a := mock.NewAdapter(id, f.URL+"/"+string(id), "m1")
		adapters = append(adapters, a)
		creds[id] = "key-" + string(id)
		byID[id] = a
	}
	reg := NewRegistryWith(adapters, creds)
	return NewCascade(reg, upstream.NewClient(f.Client(), upstream.RetryPolicy{}), opts), byID
}

func allProviders() []models.ProviderID {
	return []models.ProviderID{models.ProviderGoogle, models.ProviderGroq, models.ProviderSambaNova, models.ProviderCohere}
}

// --- SelectOrder ---

func TestSelectOrder(t *testing.T) {
	f := newFakeUpstream(t)

	tests := []struct {
		name      string
		policy    string
		available []models.ProviderID
		preferred models.ProviderID
		want      []models.ProviderID
		wantErr   error
	}{
		{
			name:      "no preference uses priority order",
			available: allProviders(),
			want:      []models.ProviderID{"google", "sambanova", "groq", "cohere"},
		},
		{
			name:      "unavailable providers are filtered",
			available: []models.ProviderID{models.ProviderCohere, models.ProviderGroq},
			want:      []models.ProviderID{"groq", "cohere"},
		},
		{
			name:      "strict preferred available",
			policy:    config.PolicyStrict,
			available: allProviders(),
			preferred: models.ProviderCohere,
			want:      []models.ProviderID{"cohere"},
		},
		{
			name:      "strict preferred unavailable",
			policy:    config.PolicyStrict,
			available: []models.ProviderID{models.ProviderGoogle},
			preferred: models.ProviderGroq,
			wantErr:   ErrProviderNotConfigured,
		},
		{
			name:      "fallback preferred goes first",
			policy:    config.PolicyFallback,
			available: allProviders(),
			preferred: models.ProviderGroq,
			want:      []models.ProviderID{"groq", "google", "sambanova", "cohere"},
		},
		{
			name:      "fallback preferred unavailable is skipped",
			policy:    config.PolicyFallback,
			available: []models.ProviderID{models.ProviderSambaNova, models.ProviderCohere},
			preferred: models.ProviderGoogle,
			want:      []models.ProviderID{"sambanova", "cohere"},
		},
		{
			name:      "preferred name is normalized",
			policy:    config.PolicyStrict,
			available: allProviders(),
			preferred: " Google ",
			want:      []models.ProviderID{"google"},
		},
		{
			name:      "fallback normalized preferred goes first",
			policy:    config.PolicyFallback,
			available: allProviders(),
			preferred: "COHERE",
			want:      []models.ProviderID{"cohere", "google", "sambanova", "groq"},
		},
		{
			name:    "none configured",
			wantErr: ErrNoProviderConfigured,
		},
		{
			name:      "unknown preferred",
			available: allProviders(),
			preferred: "openai",
			wantErr:   ErrUnknownProvider,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCascade(f, CascadeOptions{Policy: tt.policy}, tt.available...)

			got, err := c.SelectOrder(context.Background(), tt.preferred)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectOrder_Deterministic(t *testing.T) {
	f := newFakeUpstream(t)
	c, _ := newTestCascade(f, CascadeOptions{}, allProviders()...)

	first, err := c.SelectOrder(context.Background(), "")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		got, err := c.SelectOrder(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, first, got)
	}
}

// --- Analyze ---

func TestAnalyze_FirstSuccessStops(t *testing.T) {
	f := newFakeUpstream(t)
	f.output("/google/m1", goodAnalysis)
	f.output("/sambanova/m1", goodAnalysis)
	c, _ := newTestCascade(f, CascadeOptions{}, allProviders()...)

	res, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "s", res.Summary())
	assert.Equal(t, []string{"/google/m1"}, f.Calls())
}

func TestAnalyze_FallsThroughInPriorityOrder(t *testing.T) {
	f := newFakeUpstream(t)
	f.status("/google/m1", http.StatusServiceUnavailable)
	f.output("/sambanova/m1", "not json at all")
	f.output("/groq/m1", goodAnalysis)
	c, _ := newTestCascade(f, CascadeOptions{}, allProviders()...)

	res, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t"}, res.SuggestedTags())
	assert.Equal(t, []string{"/google/m1", "/sambanova/m1", "/groq/m1"}, f.Calls())
}

func TestAnalyze_TriesEveryModelOfAProvider(t *testing.T) {
	f := newFakeUpstream(t)
	f.status("/google/m1", http.StatusNotFound)
	f.output("/google/m2", goodAnalysis)
	c, byID := newTestCascade(f, CascadeOptions{}, models.ProviderGoogle, models.ProviderCohere)
	byID[models.ProviderGoogle].ModelList = []string{"m1", "m2"}

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, byID[models.ProviderGoogle].Built())
	assert.Empty(t, byID[models.ProviderCohere].Built())
}

func TestAnalyze_StrictPreferredOnly(t *testing.T) {
	f := newFakeUpstream(t)
	f.status("/cohere/m1", http.StatusInternalServerError)
	f.output("/google/m1", goodAnalysis)
	c, _ := newTestCascade(f, CascadeOptions{Policy: config.PolicyStrict}, allProviders()...)

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello", PreferredProvider: models.ProviderCohere})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, []string{"/cohere/m1"}, f.Calls())
}

func TestAnalyze_FallbackPreferredThenRest(t *testing.T) {
	f := newFakeUpstream(t)
	f.status("/cohere/m1", http.StatusInternalServerError)
	f.output("/google/m1", goodAnalysis)
	c, _ := newTestCascade(f, CascadeOptions{Policy: config.PolicyFallback}, allProviders()...)

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello", PreferredProvider: models.ProviderCohere})
	require.NoError(t, err)
	assert.Equal(t, []string{"/cohere/m1", "/google/m1"}, f.Calls())
}

func TestAnalyze_AllFailedAggregatesAttempts(t *testing.T) {
	f := newFakeUpstream(t)
	f.output("/google/m1", "I cannot do that")
	f.status("/sambanova/m1", http.StatusTooManyRequests)
	f.reply("/groq/m1", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(`{"unexpected":true}`)) })
	f.output("/cohere/m1", "   ")
	c, _ := newTestCascade(f, CascadeOptions{}, allProviders()...)

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	require.Error(t, err)

	var failed *AllProvidersFailedError
	require.True(t, errors.As(err, &failed))
	require.Len(t, failed.Attempts, 4)
	assert.Nil(t, failed.Cause)

	assert.ErrorIs(t, failed.Attempts[0].Err, ErrUnparsableAnalysis)
	var httpErr *UpstreamHTTPError
	require.True(t, errors.As(failed.Attempts[1].Err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.ErrorIs(t, failed.Attempts[2].Err, ErrMalformedUpstreamResponse)
	assert.ErrorIs(t, failed.Attempts[3].Err, ErrEmptyUpstreamText)

	msg := err.Error()
	for _, id := range []string{"google", "sambanova", "groq", "cohere"} {
		assert.Contains(t, msg, id)
	}
}

func TestAnalyze_UnreachableIsAnAttempt(t *testing.T) {
	f := newFakeUpstream(t)
	f.output("/groq/m1", goodAnalysis)
	c, byID := newTestCascade(f, CascadeOptions{}, models.ProviderGoogle, models.ProviderGroq)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	byID[models.ProviderGoogle].BaseURL = dead.URL

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/groq/m1"}, f.Calls())
}

func TestAnalyze_InvalidInput(t *testing.T) {
	f := newFakeUpstream(t)
	c, _ := newTestCascade(f, CascadeOptions{}, allProviders()...)

	for _, text := range []string{"", "   \n"} {
		_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: text})
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "x", PreferredProvider: "mistral"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, f.Calls())
}

func TestAnalyze_NoProviderConfigured(t *testing.T) {
	f := newFakeUpstream(t)
	c, _ := newTestCascade(f, CascadeOptions{})

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	assert.ErrorIs(t, err, ErrNoProviderConfigured)
}

func TestAnalyze_PerCallTimeoutMovesOn(t *testing.T) {
	f := newFakeUpstream(t)
	f.reply("/google/m1", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	f.output("/sambanova/m1", goodAnalysis)
	c, _ := newTestCascade(f, CascadeOptions{CallTimeout: 50 * time.Millisecond, CascadeTimeout: 5 * time.Second},
		models.ProviderGoogle, models.ProviderSambaNova)

	res, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "s", res.Summary())
}

func TestAnalyze_CallerCancellationStopsCascade(t *testing.T) {
	f := newFakeUpstream(t)
	started := make(chan struct{})
	f.reply("/google/m1", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	f.output("/sambanova/m1", goodAnalysis)
	c, byID := newTestCascade(f, CascadeOptions{}, models.ProviderGoogle, models.ProviderSambaNova)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Analyze(ctx, models.AnalysisRequest{Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, byID[models.ProviderSambaNova].Built())

	var failed *AllProvidersFailedError
	require.True(t, errors.As(err, &failed))
	require.Len(t, failed.Attempts, 1)
	assert.ErrorIs(t, failed.Attempts[0].Err, upstream.ErrCanceled)
	assert.False(t, errors.Is(failed.Attempts[0].Err, upstream.ErrTimeout))
}

func TestAnalyze_Idempotent(t *testing.T) {
	f := newFakeUpstream(t)
	f.output("/google/m1", "Sure:\n"+goodAnalysis)
	c, _ := newTestCascade(f, CascadeOptions{}, allProviders()...)

	first, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "same"})
	require.NoError(t, err)
	second, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: "same"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAnalyze_SendsCredential(t *testing.T) {
	f := newFakeUpstream(t)
	var auth string
	f.reply("/google/m1", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		fmt.Fprintf(w, `{"output":%q}`, goodAnalysis)
	})
	c, _ := newTestCascade(f, CascadeOptions{}, models.ProviderGoogle)

	_, err := c.Analyze(context.Background(), models.AnalysisRequest{Text: strings.Repeat("a", 10)})
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-google", auth)
}
