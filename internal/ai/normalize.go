package ai

import (
	"encoding/json"
	"strings"

	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// candidate derives a string to try parsing from the raw model output.
type candidate func(raw string) (string, bool)

var strategies = []candidate{
	whole,
	braceBounded,
	func(raw string) (string, bool) {
		s, ok := braceBounded(raw)
		return stripControl.Replace(s), ok
	},
}

var stripControl = strings.NewReplacer("\n", "", "\r", "", "\t", "")

// Normalize turns raw model output into an AnalysisResult. It tries, in order,
// the whole string, the span from the first '{' to the last '}', and that span
// with newlines and tabs removed.
func Normalize(raw string) (models.AnalysisResult, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyUpstreamText
	}

	for _, next := range strategies {
		s, ok := next(raw)
		if !ok {
			continue
		}
		if res, ok := parseObject(s); ok {
			return res, nil
		}
	}
	return nil, &UnparsableError{Excerpt: excerpt(raw, unparsableExcerpt)}
}

func whole(raw string) (string, bool) { return raw, true }

func braceBounded(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func parseObject(s string) (models.AnalysisResult, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return nil, false
	}
	return models.AnalysisResult(out), true
}
