package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable bech32 prefix used when rendering
// a principal address. The vault only ever mints one kind of address (a
// signer/proposer/recipient identity); the prefix exists so operators can tell
// mainnet and testnet addresses apart at a glance.
type AddressPrefix string

const (
	// MainPrefix is used for production treasury identities.
	MainPrefix AddressPrefix = "trsy"
	// TestPrefix is used for non-production deployments to avoid accidental
	// cross-network address confusion.
	TestPrefix AddressPrefix = "trsytest"
)

// Address represents a 20-byte principal identity (signer, proposer,
// recipient, or executor) with a human-readable bech32 encoding.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress constructs an address from a 20-byte slice and prefix.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("crypto: address must be 20 bytes long, got %d", len(b))
	}
	cloned := append([]byte(nil), b...)
	return Address{prefix: prefix, bytes: cloned}, nil
}

// MustNewAddress constructs an address and panics if the input is invalid.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// String renders the address as a bech32 string under its configured prefix.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a defensive copy of the raw 20-byte address.
func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address has never been populated.
func (a Address) IsZero() bool {
	return len(a.bytes) == 0
}

// MarshalJSON renders the address as its bech32 string so persisted records
// and JSON-RPC payloads never leak the unexported byte representation.
func (a Address) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON parses a bech32 address string produced by MarshalJSON.
func (a *Address) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" {
		*a = Address{}
		return nil
	}
	decoded, err := DecodeAddress(s)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses a bech32-encoded address string of any known prefix.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: error converting bits: %w", err)
	}
	addr, err := NewAddress(AddressPrefix(prefix), conv)
	if err != nil {
		return Address{}, err
	}
	return addr, nil
}

// --- Key management ---

// PrivateKey wraps an ECDSA secp256k1 private key used to sign administrative
// operations performed via the CLI (see cmd/treasuryctl).
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey wraps the corresponding ECDSA public key.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a new random secp256k1 key pair.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the raw private key scalar.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// PubKey derives the public key counterpart.
func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the 20-byte principal identity from the public key.
func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return MustNewAddress(MainPrefix, addrBytes)
}

// PrivateKeyFromBytes reconstructs a private key from its raw scalar bytes.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Keccak256 exposes the hashing primitive used for attestation identifiers and
// deterministic condition keys, kept here so callers never need to import
// go-ethereum directly.
func Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}
