package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// extractStructuredOutput implements the lenient structured-output parser
// of: strip Markdown code fences, extract the first balanced
// `{...}` block, then fall back to jsonrepair before giving up. Grounded on
// leofalp-aigo's core/parse.ParseStringAs, which applies the same
// unmarshal-then-repair fallback for LLM-generated JSON.
func extractStructuredOutput(raw string) (map[string]any, error) {
	candidate := stripCodeFences(raw)

	obj, ok := firstBalancedObject(candidate)
	if !ok {
		obj = strings.TrimSpace(candidate)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(obj), &out); err == nil {
		return out, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(obj)
	if repairErr != nil {
		return nil, fmt.Errorf("no valid JSON object found in model output: repair failed: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &out); err != nil {
		return nil, fmt.Errorf("model output is not a JSON object even after repair: %w", err)
	}
	return out, nil
}

// scanForbiddenTokens scans the entire raw output string — not just a
// prefix — for any configured forbidden token, returning the first one
// found. Truncating this scan would let a forbidden token past the
// prefix slip through undetected.
func scanForbiddenTokens(raw string, forbidden []string) (string, bool) {
	for _, tok := range forbidden {
		if tok == "" {
			continue
		}
		if strings.Contains(raw, tok) {
			return tok, true
		}
	}
	return "", false
}

// stripCodeFences removes surrounding ``` or ```json fences, if present,
// leaving the fenced content. Text outside a single pair of fences is left
// untouched for firstBalancedObject to scan past.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	rest := trimmed[3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isLanguageTag(firstLine) {
			rest = rest[nl+1:]
		}
	}
	if end := strings.LastIndex(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// firstBalancedObject scans s for the first top-level `{...}` block,
// respecting string literals and escapes so braces inside JSON string
// values don't throw off depth counting. Scans the entire string — the
// hallucination guard and this extractor both deliberately avoid
// truncating their view of the output.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start: i+1], true
			}
		}
	}
	return "", false
}
