// Package wire holds the pieces shared by the provider adapters: prompt
// construction, input truncation, response path extraction and the
// OpenAI-compatible chat completion body.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"github.com/tidwall/gjson"
)

// ErrPathNotFound is returned when a response body lacks the expected text field.
var ErrPathNotFound = errors.New("expected field not found")

// ChatContentPath is the answer location in an OpenAI-compatible chat completion.
const ChatContentPath = "choices.0.message.content"

// Preamble is the system instruction for providers that take one separately.
const Preamble = "You are a system that ONLY responds with valid JSON. No additional text."

// Truncate returns the first maxChars runes of s. maxChars <= 0 means no limit.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i]
		}
		n++
	}
	return s
}

// Instruction is the prompt asking for a single JSON object with the three
// analysis fields, written in language.
func Instruction(language string) string {
	return fmt.Sprintf(`Analyze the following text. Respond ONLY with a single valid JSON object, `+
		`with no markdown fences and no text before or after it, using exactly this structure: `+
		`{"summary": "dense executive summary (%[1]s)", "keyPoints": "markdown list of 5 key points (%[1]s)", `+
		`"suggestedTags": ["tag1", "tag2"]}.`, language)
}

// Build returns the full user prompt: instruction followed by the text cut to maxChars.
func Build(language, text string, maxChars int) string {
	return Instruction(language) + "\n\nTEXT:\n" + Truncate(text, maxChars)
}

// ExtractString returns the string at path in body.
func ExtractString(body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: body is not valid JSON", ErrPathNotFound)
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return "", fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	if res.Type != gjson.String {
		return "", fmt.Errorf("%w: %s is %s, not a string", ErrPathNotFound, path, res.Type)
	}
	return res.String(), nil
}

// ChatOptions tunes an OpenAI-compatible chat completion body.
type ChatOptions struct {
	Temperature *float64
	JSONObject  bool
}

// ChatCompletionBody encodes a single-user-message chat completion request.
func ChatCompletionBody(model, prompt string, opts ChatOptions) ([]byte, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.JSONObject {
		format := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &format,
		}
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding chat completion: %w", err)
	}
	return body, nil
}
