package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxKeyLength bounds storage keys in backends like Redis.
const maxKeyLength = 64

// Key joins non-empty parts with ":". Keys longer than 64 chars are replaced
// by a 32 hex char SHA256 prefix.
func Key(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return ""
	}

	combined := strings.Join(clean, ":")
	if len(combined) > maxKeyLength {
		hash := sha256.Sum256([]byte(combined))
		return hex.EncodeToString(hash[:16])
	}
	return combined
}
