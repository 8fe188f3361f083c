// Package sha256 derives stable object keys from source URLs.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// contentKeyLen is the number of hex characters kept in a content key.
const contentKeyLen = 16

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ContentKey scopes a package's assets before its content ID exists. The same source URL
// always maps to the same key.
func ContentKey(sourceURL string) string {
	return Hash([]byte(strings.TrimSpace(sourceURL)))[:contentKeyLen]
}
