package test

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n cryptographically random bytes, used as opaque
// request payloads in tests.
func RandomBytes(n int) []byte {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return bytes
}

// RandomString returns a random hex string of length n.
func RandomString(n int) string {
	b := RandomBytes(n/2 + 1)
	return fmt.Sprintf("%x", b)[:n]
}
