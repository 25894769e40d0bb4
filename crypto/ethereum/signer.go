// Package ethereum provides secp256k1 signing keys and Ethereum-style
// signatures. Poll authorities are identified by the address recovered from
// their signatures, and the MPC cluster attests computation results with the
// same scheme.
package ethereum

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the size in bytes of an ECDSA signature with recovery id.
const SignatureLength = 65

// SignKeys holds an ECDSA keypair for signing and address derivation.
type SignKeys struct {
	private *ecdsa.PrivateKey
}

// NewSignKeys creates an empty SignKeys. Call Generate or AddHexKey before
// signing.
func NewSignKeys() *SignKeys {
	return &SignKeys{}
}

// Generate creates a new random keypair.
func (k *SignKeys) Generate() error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	k.private = key
	return nil
}

// AddHexKey imports a private key from its hexadecimal representation.
func (k *SignKeys) AddHexKey(privHex string) error {
	key, err := ethcrypto.HexToECDSA(privHex)
	if err != nil {
		return fmt.Errorf("import key: %w", err)
	}
	k.private = key
	return nil
}

// HexString returns the compressed public key and the private key as
// hexadecimal strings.
func (k *SignKeys) HexString() (string, string) {
	pub := ethcrypto.CompressPubkey(&k.private.PublicKey)
	priv := ethcrypto.FromECDSA(k.private)
	return hex.EncodeToString(pub), hex.EncodeToString(priv)
}

// PublicKey returns the compressed public key.
func (k *SignKeys) PublicKey() []byte {
	return ethcrypto.CompressPubkey(&k.private.PublicKey)
}

// Address returns the Ethereum address of the keypair.
func (k *SignKeys) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.private.PublicKey)
}

// AddressString returns the hexadecimal Ethereum address of the keypair.
func (k *SignKeys) AddressString() string {
	return k.Address().String()
}

// SignEthereum signs a message with the Ethereum personal-message prefix.
func (k *SignKeys) SignEthereum(message []byte) ([]byte, error) {
	if k.private == nil {
		return nil, fmt.Errorf("no private key available")
	}
	return ethcrypto.Sign(Hash(message), k.private)
}

// Hash prefixes the message the Ethereum way and returns its keccak256 hash.
func Hash(message []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return HashRaw([]byte(prefixed))
}

// HashRaw returns the keccak256 hash of data, without any prefix.
func HashRaw(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}

// AddrFromPublicKey derives the address from a compressed public key.
func AddrFromPublicKey(pub []byte) (common.Address, error) {
	pubKey, err := ethcrypto.DecompressPubkey(pub)
	if err != nil {
		return common.Address{}, fmt.Errorf("decompress public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// AddrFromSignature recovers the address that signed message with SignEthereum.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	if len(signature) != SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pubKey, err := ethcrypto.SigToPub(Hash(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}
