package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when a completion contains no JSON object.
var ErrNoJSON = errors.New("llm: no JSON object in completion")

// ExtractJSON locates the JSON object in a completion. Models wrap JSON in
// markdown fences or preamble text often enough that callers should never
// unmarshal the raw content directly.
func ExtractJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)

	// Strip a markdown code fence if present.
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}
	s = s[start:]

	// Walk to the matching close bracket, respecting strings.
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
			if depth == 0 {
				return json.RawMessage(s[:i+1]), nil
			}
		}
	}
	return nil, ErrNoJSON
}

// Decode extracts the JSON object from a completion and unmarshals it
// strictly into dest (unknown fields rejected). A nil error means dest is
// fully populated from a shape-valid response; any error means the caller
// should take its deterministic fallback path.
func Decode(content string, dest any) error {
	raw, err := ExtractJSON(content)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("llm: decode completion: %w", err)
	}
	return nil
}
