package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashStrings fingerprints an ordered list of values, e.g. the ids covered by a batch.
func HashStrings(values []string) string {
	h := sha256.New()
	for _, v := range values {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
