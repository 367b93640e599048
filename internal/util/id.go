package util

import (
	"crypto/rand"
	"encoding/hex"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewTempID generates a client-local placeholder id for a pending write. The
// "tmp" prefix keeps it visually distinct from store-assigned ids; it is never
// persisted.
func NewTempID() string {
	return NewID("tmp")
}
