package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/textbrief/internal/ai"
	"github.com/kiranshivaraju/textbrief/internal/api/response"
	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// Analyzer defines the interface the handler depends on.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

type analyzeRequest struct {
	Text              string `json:"text"`
	PreferredProvider string `json:"preferredProvider"`
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/ai.
func NewAnalyzeHandler(svc Analyzer, maxBodyBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
				return
			}
			response.Error(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if strings.TrimSpace(req.Text) == "" {
			response.Error(w, http.StatusBadRequest, "text is required")
			return
		}

		var preferred models.ProviderID
		if name := strings.TrimSpace(req.PreferredProvider); name != "" {
			id, ok := models.ParseProviderID(name)
			if !ok {
				response.Error(w, http.StatusBadRequest, fmt.Sprintf("%v: %q", ai.ErrUnknownProvider, name))
				return
			}
			preferred = id
		}

		result, err := svc.Analyze(r.Context(), models.AnalysisRequest{
			Text:              req.Text,
			PreferredProvider: preferred,
		})
		if err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				slog.ErrorContext(r.Context(), "analysis failed", "error", err, "text_len", len(req.Text))
			}
			response.Error(w, status, messageFor(err))
			return
		}

		response.JSON(w, result)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ai.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, ai.ErrInvalidInput),
		errors.Is(err, ai.ErrProviderNotConfigured),
		errors.Is(err, ai.ErrNoProviderConfigured),
		errors.Is(err, ai.ErrAllProvidersFailed):
		return err.Error()
	default:
		return "an unexpected error occurred"
	}
}
