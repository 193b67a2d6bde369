// Package identity derives the deduplication key for a posting.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lower-cases, trims and collapses internal whitespace. Every field
// that feeds Hash goes through this, so callers never normalize on their own.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Hash returns a stable hex SHA-256 digest of the normalized
// (title, company, canonicalURL) triple. A trailing slash on the URL is
// ignored.
func Hash(title, company, canonicalURL string) string {
	u := strings.TrimRight(Normalize(canonicalURL), "/")

	h := sha256.New()
	// Unit separator keeps ("ab", "c") and ("a", "bc") apart.
	h.Write([]byte(Normalize(title)))
	h.Write([]byte{0x1f})
	h.Write([]byte(Normalize(company)))
	h.Write([]byte{0x1f})
	h.Write([]byte(u))
	return hex.EncodeToString(h.Sum(nil))
}
