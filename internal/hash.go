package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashURL returns a stable hex sha256 of a URL, used as a
// content-independent cache and storage key.
func HashURL(url string) string {
	return HashContent(url)
}

// HashContent returns the hex sha256 of arbitrary content, used as the
// content hash of normalized HTML.
func HashContent(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
