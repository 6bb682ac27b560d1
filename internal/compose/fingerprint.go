package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Normalize collapses a question to its canonical form for cache keying:
// lowercased, with runs of whitespace reduced to single spaces.
func Normalize(question string) string {
	return strings.ToLower(strings.Join(strings.Fields(question), " "))
}

// Fingerprint derives the answer cache key from everything that affects the
// rendered page. Two requests differing only in question whitespace or case
// share a fingerprint.
func Fingerprint(question, layout string, includeCitations bool, brandClass, primary string) string {
	raw := strings.Join([]string{
		Normalize(question),
		layout,
		strconv.FormatBool(includeCitations),
		brandClass,
		primary,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:24]
}

// TraceID derives the request trace identifier from the raw question text.
// The same question always traces the same, memo hit or not.
func TraceID(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])[:16]
}
