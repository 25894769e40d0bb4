package util

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// RandomBytes generates a random byte slice of length n.
func RandomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return b
}

// Random16 generates a random 16-byte array, the size of a tally nonce.
func Random16() [16]byte {
	var bytes [16]byte
	copy(bytes[:], RandomBytes(16))
	return bytes
}

// Random32 generates a random 32-byte array.
func Random32() [32]byte {
	var bytes [32]byte
	copy(bytes[:], RandomBytes(32))
	return bytes
}

// RandomHex generates a random hex string of length n.
func RandomHex(n int) string {
	return fmt.Sprintf("%x", RandomBytes(n))
}

// RandomU64 generates a random uint64, suitable as a correlation handle.
func RandomU64() uint64 {
	return binary.LittleEndian.Uint64(RandomBytes(8))
}

// TrimHex trims the '0x' prefix from a hex string.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
