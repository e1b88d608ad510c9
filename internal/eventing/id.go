package eventing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewEventID generates a random UUIDv4-shaped event identifier.
func NewEventID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("eventing: generate event id: %w", err)
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return hex.EncodeToString(buf[:]), nil
}
