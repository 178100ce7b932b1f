package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CanonicalPrompt renders a system prompt plus an input map into stable
// prompt bytes: same inputs must always yield the same bytes. Keys are
// sorted and each value is JSON-encoded, so the rendering is independent of
// Go's randomized map iteration order.
func CanonicalPrompt(systemPrompt string, input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(systemPrompt)
	if len(keys) == 0 {
		return b.String()
	}

	b.WriteString("\n\n")
	for _, k := range keys {
		valBytes, err := json.Marshal(input[k])
		if err != nil {
			valBytes = []byte(fmt.Sprintf("%q", fmt.Sprintf("%v", input[k])))
		}
		fmt.Fprintf(&b, "%s: %s\n", k, valBytes)
	}
	return b.String()
}
