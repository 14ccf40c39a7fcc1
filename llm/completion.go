package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// completionKind tags the two forms a chat completion can take.
type completionKind int

const (
	completionText completionKind = iota
	completionStructured
)

// Completion is a chat response classified as either a structured JSON
// record or plain text. Callers that need a typed record use Structured;
// callers that want prose use Text. This replaces ad-hoc sniffing of the
// response body at each call site.
type Completion struct {
	kind   completionKind
	text   string
	record json.RawMessage
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// ParseCompletion classifies raw chat output. If a JSON object can be
// located in the text (handling markdown code fences and surrounding prose,
// both common LLM quirks), the completion is structured; otherwise it is
// plain text.
func ParseCompletion(raw string) Completion {
	if obj, ok := extractJSONObject(raw); ok {
		return Completion{kind: completionStructured, record: json.RawMessage(obj)}
	}
	return Completion{kind: completionText, text: strings.TrimSpace(raw)}
}

// Structured returns the embedded JSON object and true when the completion
// is a structured record.
func (c Completion) Structured() (json.RawMessage, bool) {
	if c.kind != completionStructured {
		return nil, false
	}
	return c.record, true
}

// Text returns the completion as plain text: the prose body for text
// completions, the raw JSON for structured ones.
func (c Completion) Text() string {
	if c.kind == completionStructured {
		return string(c.record)
	}
	return c.text
}

// Decode unmarshals a structured completion into v. It fails when the
// completion carries no JSON object.
func (c Completion) Decode(v any) error {
	record, ok := c.Structured()
	if !ok {
		return fmt.Errorf("completion is not structured: %q", truncate(c.text, 120))
	}
	if err := json.Unmarshal(record, v); err != nil {
		return fmt.Errorf("decoding structured completion: %w", err)
	}
	return nil
}

// extractJSONObject finds a JSON object in the response text. It handles
// markdown code blocks and text before/after the object.
func extractJSONObject(raw string) (string, bool) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") && json.Valid([]byte(raw)) {
		return raw, true
	}

	// Find the first '{' and last '}' to extract the JSON object.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidate := raw[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}

	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
