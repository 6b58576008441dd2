package coordinator

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// hashPin stores only the digest; the engine's PlayerState.PinHash field
// never holds the raw PIN.
func hashPin(pin string) string {
	sum := sha256.Sum256([]byte(pin))
	return hex.EncodeToString(sum[:])
}

// verifyPin reports whether pin matches the stored digest, using a
// constant-time comparison so response timing cannot leak the digest.
func verifyPin(pin, storedHash string) bool {
	got := hashPin(pin)
	return subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) == 1
}
