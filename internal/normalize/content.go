package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoContent indicates a well-formed provider response that carries no
// message content: the body parsed, but neither supported response shape
// yielded text.
var ErrNoContent = errors.New("model response contains no content")

// ErrUnparsableBody indicates a response body that is not valid JSON for
// either supported shape. It is distinct from ErrNoContent so callers can
// tell an empty reply apart from a mangled one.
var ErrUnparsableBody = errors.New("model response body is not parseable")

// openAIResponse mirrors the OpenAI-style completion shape:
// choices[0].message.content.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// geminiResponse mirrors the Gemini-style completion shape:
// candidates[0].content.parts[].text.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// ExtractContent pulls the reply text out of a 200-response body that may be
// either OpenAI-shaped or Gemini-shaped. The OpenAI shape is tried first;
// Gemini part texts are concatenated in order. A body that decodes into
// neither shape yields ErrUnparsableBody; a body that decodes but carries no
// text yields ErrNoContent.
func ExtractContent(body []byte) (string, error) {
	var openai openAIResponse
	openaiErr := json.Unmarshal(body, &openai)
	if openaiErr == nil && len(openai.Choices) > 0 {
		if content := openai.Choices[0].Message.Content; content != "" {
			return content, nil
		}
	}

	var gemini geminiResponse
	geminiErr := json.Unmarshal(body, &gemini)
	if geminiErr == nil && len(gemini.Candidates) > 0 {
		var b strings.Builder
		for _, part := range gemini.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			return b.String(), nil
		}
	}

	if openaiErr != nil && geminiErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnparsableBody, openaiErr)
	}
	return "", ErrNoContent
}
