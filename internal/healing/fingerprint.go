package healing

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprint hashes an HTML sample so the controller can tell whether a
// fresh fetch returned the same page as the last healing attempt for a
// host, and skip burning an LLM call on an identical regeneration input.
func fingerprint(html string) string {
	sum := blake2b.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}
