package types

const (
	// NumOptions is the number of voting options in a poll. The tally
	// circuit is compiled for exactly three counters.
	NumOptions = 3
	// SlotSize is the width in bytes of one encrypted counter slot. It is a
	// protocol constant tied to the cluster's encryption scheme.
	SlotSize = 32
	// TallyNonceSize is the size in bytes of the tally nonce (u128).
	TallyNonceSize = 16
	// VoteCiphertextSize is the size in bytes of an encrypted vote choice.
	VoteCiphertextSize = 32
	// EncryptionPubKeySize is the size in bytes of an x25519 public key.
	EncryptionPubKeySize = 32
	// MaxQuestionLen is the maximum length of a poll question in bytes.
	MaxQuestionLen = 50

	// TallyOffset is the byte offset of the encrypted counters within the
	// marshalled poll record, right after the bump byte. The computation
	// gateway references the counters by this offset, so the record layout
	// is part of the wire contract.
	TallyOffset = 1
	// TallyLength is the byte length of the encrypted counters region.
	TallyLength = NumOptions * SlotSize
)
