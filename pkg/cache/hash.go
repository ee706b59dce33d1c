package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the hex SHA-256 of data. Graph content hashes and file
// cache paths are derived from it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashJSON hashes the JSON encoding of v. Values that fail to encode hash
// as the empty input.
func HashJSON(v any) string {
	data, _ := json.Marshal(v)
	return Hash(data)
}

// hashKey builds "<kind>:<sha256 of parts>".
func hashKey(kind string, parts ...any) string {
	return kind + ":" + HashJSON(parts)
}
