package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// maxAnswerRunes bounds extracted answers so a runaway response cannot bloat
// the ledger.
const maxAnswerRunes = 4096

// Answer field names in priority order. Pipelines return duck-typed JSON;
// this is the closed set of shapes we accept directly.
var answerFields = []string{"response", "answer", "interpretation", "result", "output"}

// Containers whose inner fields are tried when no top-level field matches.
var answerContainers = []string{"data", "message", "payload"}

// extractAnswer pulls the most specific answer text out of a response body.
// Non-JSON bodies are used verbatim; JSON bodies walk the field priority
// list, then one container level, then fall back to stringifying whatever
// remains.
func extractAnswer(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", errEmptyBody
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Plain-text pipelines are allowed; the body is the answer.
		return boundAnswer(trimmed), nil
	}

	if text, ok := answerFromFields(decoded); ok {
		return boundAnswer(text), nil
	}
	for _, container := range answerContainers {
		inner, ok := decoded[container].(map[string]any)
		if !ok {
			continue
		}
		if text, ok := answerFromFields(inner); ok {
			return boundAnswer(text), nil
		}
	}

	// Stringify remainder: last resort for unrecognized shapes.
	remainder, err := json.Marshal(decoded)
	if err != nil || len(decoded) == 0 {
		return "", errMalformedResponse
	}
	return boundAnswer(string(remainder)), nil
}

func answerFromFields(obj map[string]any) (string, bool) {
	for _, field := range answerFields {
		value, ok := obj[field]
		if !ok {
			continue
		}
		text := stringifyValue(value)
		if strings.TrimSpace(text) != "" {
			return text, true
		}
	}
	return "", false
}

func stringifyValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}

func boundAnswer(text string) string {
	runes := []rune(text)
	if len(runes) <= maxAnswerRunes {
		return text
	}
	return string(runes[:maxAnswerRunes])
}
