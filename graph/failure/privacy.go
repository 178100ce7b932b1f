package failure

import (
	"regexp"
	"strings"
)

const maskValue = "********"

var sensitiveKeyDefaults = []string{
	"api_key", "apikey", "password", "secret", "token", "authorization", "email",
}

// vendorKeyPatterns catch well-known secret shapes that might appear as a
// string *value* regardless of which key they're stored under.
var vendorKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`glpat-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`pat\.[A-Za-z0-9_.-]{10,}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
}

// Sanitizer applies the mandatory privacy filter before any part of a
// failure descriptor is written anywhere durable. Masking is irreversible;
// the original value is never retained.
type Sanitizer struct {
	sensitiveKeys map[string]struct{}
}

// NewSanitizer builds a Sanitizer from the configured sensitive-key
// patterns, merged with the mandatory defaults above.
func NewSanitizer(extraKeys []string) *Sanitizer {
	keys := make(map[string]struct{}, len(sensitiveKeyDefaults)+len(extraKeys))
	for _, k := range sensitiveKeyDefaults {
		keys[k] = struct{}{}
	}
	for _, k := range extraKeys {
		keys[k] = struct{}{}
	}
	return &Sanitizer{sensitiveKeys: keys}
}

// Sanitize recursively walks snapshot, replacing sensitive-key values and
// vendor-key-shaped string values with a fixed mask. The input is never
// mutated; a sanitized copy is returned.
func (s *Sanitizer) Sanitize(snapshot map[string]any) map[string]any {
	if snapshot == nil {
		return nil
	}
	out := make(map[string]any, len(snapshot))
	for k, v := range snapshot {
		out[k] = s.sanitizeValue(k, v)
	}
	return out
}

func (s *Sanitizer) sanitizeValue(key string, v any) any {
	if s.isSensitiveKey(key) {
		return maskValue
	}
	switch t := v.(type) {
	case string:
		return s.sanitizeString(t)
	case map[string]any:
		return s.Sanitize(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.sanitizeValue("", item)
		}
		return out
	default:
		return v
	}
}

func (s *Sanitizer) sanitizeString(v string) string {
	for _, re := range vendorKeyPatterns {
		if re.MatchString(v) {
			return maskValue
		}
	}
	return v
}

func (s *Sanitizer) isSensitiveKey(key string) bool {
	if key == "" {
		return false
	}
	normalized := normalizeKey(key)
	for pattern := range s.sensitiveKeys {
		if strings.Contains(normalized, pattern) {
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}
