package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering identities.
const AddressPrefix = "onda"

// Address identifies an account, counterparty or derived capability.
type Address [20]byte

// AssetID identifies a single non-fungible collateral unit (a mint).
type AssetID [32]byte

// ZeroAddress is the unset identity.
var ZeroAddress Address

// BytesToAddress copies the trailing 20 bytes of b into an Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > len(a) {
		b = b[len(b)-len(a):]
	}
	copy(a[len(a)-len(b):], b)
	return a
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool { return a == ZeroAddress }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte { return append([]byte(nil), a[:]...) }

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// MarshalText renders the bech32 form.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts bech32 or 0x-prefixed hex.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// DecodeAddress parses the bech32 form produced by String.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 20 {
		return Address{}, fmt.Errorf("address must be 20 bytes long")
	}
	return BytesToAddress(conv), nil
}

// ParseAddress accepts either the bech32 form or 0x-prefixed hex.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		b, err := hex.DecodeString(trimmed[2:])
		if err != nil {
			return Address{}, fmt.Errorf("invalid hex address: %w", err)
		}
		if len(b) != 20 {
			return Address{}, fmt.Errorf("address must be 20 bytes long")
		}
		return BytesToAddress(b), nil
	}
	return DecodeAddress(trimmed)
}

// DeriveAddress returns an address that is a pure function of the seeds. No
// private key exists for it, so only code that re-derives it can act as it.
func DeriveAddress(seeds ...[]byte) Address {
	return BytesToAddress(crypto.Keccak256(append([][]byte{[]byte("onda:derived")}, seeds...)...)[12:])
}

func (id AssetID) String() string { return "0x" + hex.EncodeToString(id[:]) }

// IsZero reports whether the asset identifier is unset.
func (id AssetID) IsZero() bool { return id == AssetID{} }

func (id AssetID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *AssetID) UnmarshalText(text []byte) error {
	parsed, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseAssetID decodes a 0x-prefixed (or bare) 64 character hex mint id.
func ParseAssetID(raw string) (AssetID, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return AssetID{}, fmt.Errorf("invalid asset id: %w", err)
	}
	if len(b) != 32 {
		return AssetID{}, fmt.Errorf("asset id must be 32 bytes long")
	}
	var id AssetID
	copy(id[:], b)
	return id, nil
}

// NewAssetID derives a mint identifier from an arbitrary label.
func NewAssetID(label []byte) AssetID {
	var id AssetID
	copy(id[:], crypto.Keccak256(label))
	return id
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int { return bytes.Compare(a[:], b[:]) }

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

func (k *PublicKey) Address() Address {
	return Address(crypto.PubkeyToAddress(*k.PublicKey))
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
