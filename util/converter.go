package util

import "encoding/binary"

// Uint64ToBytes returns the big-endian encoding of i. Big-endian keys keep
// the database's binary-alphabetical scan order equal to numeric order.
func Uint64ToBytes(i uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, i)
	return bytes
}

func BytesToUint64(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
