package mxe

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/enclavote/enclavote/types"
)

func TestCountsRoundTrip(t *testing.T) {
	c := qt.New(t)

	key, err := NewRootKey()
	c.Assert(err, qt.IsNil)
	nonce, err := NewTallyNonce()
	c.Assert(err, qt.IsNil)

	counts := [types.NumOptions]uint64{0, 12345, 1 << 40}
	slots := EncryptCounts(key, nonce, counts)

	decrypted, err := DecryptCounts(key, nonce, slots)
	c.Assert(err, qt.IsNil)
	c.Assert(decrypted, qt.Equals, counts)
}

func TestCountsWrongNonceRejected(t *testing.T) {
	c := qt.New(t)

	key, err := NewRootKey()
	c.Assert(err, qt.IsNil)
	nonce, err := NewTallyNonce()
	c.Assert(err, qt.IsNil)

	slots := EncryptCounts(key, nonce, [types.NumOptions]uint64{1, 2, 3})

	other, err := NewTallyNonce()
	c.Assert(err, qt.IsNil)
	_, err = DecryptCounts(key, other, slots)
	c.Assert(err, qt.IsNotNil)
}

func TestEqualCountsDistinctSlots(t *testing.T) {
	c := qt.New(t)

	key, err := NewRootKey()
	c.Assert(err, qt.IsNil)
	nonce, err := NewTallyNonce()
	c.Assert(err, qt.IsNil)

	slots := EncryptCounts(key, nonce, [types.NumOptions]uint64{5, 5, 5})
	c.Assert(slots[0], qt.Not(qt.Equals), slots[1])
	c.Assert(slots[1], qt.Not(qt.Equals), slots[2])
}

func TestVoteSharedSecret(t *testing.T) {
	c := qt.New(t)

	clusterPriv, clusterPub, err := GenerateX25519()
	c.Assert(err, qt.IsNil)
	voterPriv, voterPub, err := GenerateX25519()
	c.Assert(err, qt.IsNil)

	voterSecret, err := SharedSecret(voterPriv, clusterPub)
	c.Assert(err, qt.IsNil)
	clusterSecret, err := SharedSecret(clusterPriv, voterPub)
	c.Assert(err, qt.IsNil)
	c.Assert(voterSecret, qt.Equals, clusterSecret)

	nonce, err := NewTallyNonce()
	c.Assert(err, qt.IsNil)

	ct := EncryptVote(voterSecret, nonce, 2)
	choice, err := DecryptVote(clusterSecret, nonce, ct)
	c.Assert(err, qt.IsNil)
	c.Assert(choice, qt.Equals, uint8(2))

	// A wrong shared secret must not open the ciphertext.
	_, err = DecryptVote(voterPriv, nonce, ct)
	c.Assert(err, qt.IsNotNil)
}
