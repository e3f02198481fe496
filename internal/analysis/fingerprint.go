// Package analysis coordinates content-safety checks: fingerprinting,
// caching, in-flight de-duplication, debouncing and severity escalation.
package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a stable hash of normalized title+body. Two contents
// that differ only in case or whitespace share a fingerprint, so edits that
// do not change the words never trigger a fresh analysis.
func Fingerprint(title, body string) string {
	h := sha256.New()
	h.Write([]byte(normalize(title)))
	h.Write([]byte{0}) // keep "ab"+"c" distinct from "a"+"bc"
	h.Write([]byte(normalize(body)))
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
