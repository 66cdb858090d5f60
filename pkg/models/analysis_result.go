package models

// AnalysisResult holds the JSON object produced by a provider. It is passed
// through to the caller as-is: extra fields survive, missing fields stay missing.
type AnalysisResult map[string]any

// NewAnalysisResult builds a result with the three well-known fields.
func NewAnalysisResult(summary, keyPoints string, tags []string) AnalysisResult {
	out := make([]any, len(tags))
	for i, t := range tags {
		out[i] = t
	}
	return AnalysisResult{
		"summary":       summary,
		"keyPoints":     keyPoints,
		"suggestedTags": out,
	}
}

// Summary returns the summary field, or "" when absent or not a string.
func (r AnalysisResult) Summary() string {
	s, _ := r["summary"].(string)
	return s
}

// KeyPoints returns the markdown key points, or "" when absent or not a string.
func (r AnalysisResult) KeyPoints() string {
	s, _ := r["keyPoints"].(string)
	return s
}

// SuggestedTags returns the string entries of suggestedTags in order.
// Non-string entries are skipped.
func (r AnalysisResult) SuggestedTags() []string {
	raw, ok := r["suggestedTags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}
