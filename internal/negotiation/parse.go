package negotiation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoDecision is returned by ParseDecision when no JSON object can be
// recovered from the text.
var ErrNoDecision = errors.New("negotiation: no decision object in text")

const fence = "```"

// ParseDecision recovers a raw decision object from free-form model output.
// It tries, in order: the whole text, the first ```json block, the first
// bare ``` block, the text with fences removed, and the outermost {...} span.
func ParseDecision(text string) (RawDecision, error) {
	candidates := []string{strings.TrimSpace(text)}
	if _, after, ok := strings.Cut(text, fence+"json"); ok {
		block, _, _ := strings.Cut(after, fence)
		candidates = append(candidates, block)
	}
	if _, after, ok := strings.Cut(text, fence); ok {
		block, _, _ := strings.Cut(after, fence)
		candidates = append(candidates, block)
	}
	stripped := strings.ReplaceAll(strings.ReplaceAll(text, fence+"json", ""), fence, "")
	candidates = append(candidates, stripped)
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		candidates = append(candidates, text[i:j+1])
	}

	for _, c := range candidates {
		if raw, ok := decodeObject(c); ok {
			return raw, nil
		}
	}
	snippet := strings.TrimSpace(text)
	if len(snippet) > 80 {
		cut := 80
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut] + "..."
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDecision, snippet)
}

func decodeObject(s string) (RawDecision, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var raw RawDecision
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return raw, true
}
