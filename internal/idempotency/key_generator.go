package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const ticketLength = 12

// GenerateKey builds a deterministic key using all provided parts.
func GenerateKey(parts ...interface{}) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v:", part)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Ticket returns a short key suitable for Telegram callback payloads.
func Ticket(parts ...interface{}) string {
	return GenerateKey(parts...)[:ticketLength]
}
