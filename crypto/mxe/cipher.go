// Package mxe implements the cipher suite shared between the MPC cluster and
// its clients: the cluster-keyed slot cipher protecting the tally counters at
// rest, and the x25519 shared-secret cipher voters use to submit encrypted
// choices. Ciphertexts are opaque 32-byte blocks everywhere outside this
// package and the cluster engine.
package mxe

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/curve25519"

	"github.com/enclavote/enclavote/types"
)

const (
	tallyCipherContext = "enclavote/mxe tally slot cipher v1"
	voteCipherContext  = "enclavote/mxe vote cipher v1"
)

// RootKey is the cluster's shared symmetric key under which tally counters
// are encrypted at rest.
type RootKey [32]byte

// NewRootKey generates a random root key.
func NewRootKey() (RootKey, error) {
	var k RootKey
	if _, err := rand.Read(k[:]); err != nil {
		return RootKey{}, fmt.Errorf("generate root key: %w", err)
	}
	return k, nil
}

// GenerateX25519 returns a fresh x25519 keypair.
func GenerateX25519() (priv, pub [32]byte, err error) {
	if _, err = rand.Read(priv[:]); err != nil {
		return priv, pub, fmt.Errorf("generate x25519 key: %w", err)
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, err
	}
	copy(pub[:], p)
	return priv, pub, nil
}

// SharedSecret computes the x25519 shared secret between a private key and a
// peer public key. Both sides of a vote submission derive the same secret.
func SharedSecret(priv, peerPub [32]byte) ([32]byte, error) {
	var secret [32]byte
	s, err := curve25519.X25519(priv[:], peerPub[:])
	if err != nil {
		return secret, fmt.Errorf("x25519: %w", err)
	}
	copy(secret[:], s)
	return secret, nil
}

// keystream derives a 32-byte keystream block bound to a key, a nonce and a
// domain-separated context.
func keystream(context string, key []byte, nonce []byte, index uint8) [32]byte {
	material := make([]byte, 0, len(key)+len(nonce)+1)
	material = append(material, key...)
	material = append(material, nonce...)
	material = append(material, index)
	var out [32]byte
	blake3.DeriveKey(context, material, out[:])
	return out
}

// sealU64 pads v into a 32-byte block and masks it with ks.
func sealU64(ks [32]byte, v uint64) [32]byte {
	var block [32]byte
	binary.LittleEndian.PutUint64(block[:8], v)
	for i := range block {
		block[i] ^= ks[i]
	}
	return block
}

// openU64 unmasks a 32-byte block and recovers the padded value. It fails if
// the padding does not come back as zeros, which is what happens when the
// nonce supplied does not match the one the block was sealed under.
func openU64(ks [32]byte, ct [32]byte) (uint64, error) {
	var block [32]byte
	for i := range block {
		block[i] = ct[i] ^ ks[i]
	}
	for _, b := range block[8:] {
		if b != 0 {
			return 0, fmt.Errorf("ciphertext does not match keystream domain")
		}
	}
	return binary.LittleEndian.Uint64(block[:8]), nil
}

// EncryptCounts seals the three counters under the root key and nonce. Each
// slot uses an independent keystream so identical counts never produce
// identical slots.
func EncryptCounts(key RootKey, nonce [types.TallyNonceSize]byte, counts [types.NumOptions]uint64) [types.NumOptions][types.SlotSize]byte {
	var slots [types.NumOptions][types.SlotSize]byte
	for i, v := range counts {
		slots[i] = sealU64(keystream(tallyCipherContext, key[:], nonce[:], uint8(i)), v)
	}
	return slots
}

// DecryptCounts opens the three counter slots sealed by EncryptCounts.
func DecryptCounts(key RootKey, nonce [types.TallyNonceSize]byte, slots [types.NumOptions][types.SlotSize]byte) ([types.NumOptions]uint64, error) {
	var counts [types.NumOptions]uint64
	for i, ct := range slots {
		v, err := openU64(keystream(tallyCipherContext, key[:], nonce[:], uint8(i)), ct)
		if err != nil {
			return counts, fmt.Errorf("slot %d: %w", i, err)
		}
		counts[i] = v
	}
	return counts, nil
}

// EncryptVote seals a vote choice under the shared secret and the vote nonce.
func EncryptVote(secret [32]byte, nonce [types.TallyNonceSize]byte, choice uint8) [types.VoteCiphertextSize]byte {
	return sealU64(keystream(voteCipherContext, secret[:], nonce[:], 0), uint64(choice))
}

// DecryptVote opens a vote ciphertext sealed by EncryptVote.
func DecryptVote(secret [32]byte, nonce [types.TallyNonceSize]byte, ct [types.VoteCiphertextSize]byte) (uint8, error) {
	v, err := openU64(keystream(voteCipherContext, secret[:], nonce[:], 0), ct)
	if err != nil {
		return 0, err
	}
	if v > 0xff {
		return 0, fmt.Errorf("vote value out of byte range")
	}
	return uint8(v), nil
}

// NewTallyNonce generates a random 128-bit tally nonce.
func NewTallyNonce() ([types.TallyNonceSize]byte, error) {
	var nonce [types.TallyNonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}
