// Package failure implements the Failure Recorder (C3): a non-blocking,
// deduplicating, privacy-filtering sink for failed node Attempts.
package failure

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Fingerprint computes the stable identity of a failure: sha256 over
// node id, error kind, and a normalized message, stable across runs.
func Fingerprint(nodeID, errorKind, message string) string {
	h := sha256.New()
	h.Write([]byte(nodeID))
	h.Write([]byte{0})
	h.Write([]byte(errorKind))
	h.Write([]byte{0})
	h.Write([]byte(normalizeMessage(message)))
	return hex.EncodeToString(h.Sum(nil))
}

var (
	numberPattern = regexp.MustCompile(`\d+`)
	quotedPattern = regexp.MustCompile(`"[^"]*"`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// normalizeMessage collapses the variable parts of an error message (ids,
// quoted values, numbers, whitespace runs) so that two occurrences of
// "logically the same" failure collapse onto one fingerprint even when
// their messages differ in specifics.
func normalizeMessage(msg string) string {
	msg = quotedPattern.ReplaceAllString(msg, `"_"`)
	msg = numberPattern.ReplaceAllString(msg, "N")
	msg = spacePattern.ReplaceAllString(msg, " ")
	return strings.TrimSpace(msg)
}
