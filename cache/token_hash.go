package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken hashes a token string, this makes the cache key much
// shorter and keeps raw token values out of the backing store.
func HashToken(token string) string {
	hasher := sha256.New()
	hasher.Write([]byte(token))
	hashedBytes := hasher.Sum(nil)
	return hex.EncodeToString(hashedBytes)
}
