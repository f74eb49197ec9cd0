package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"wallet-signal/internal/domain"
)

// Signer errors.
var (
	ErrInvalidSecret  = errors.New("invalid secret key")
	ErrInvalidAddress = errors.New("invalid account address")
	ErrKeyMismatch    = errors.New("secret key does not match address")
)

// NewTrackedAccount decodes a base58 secret and checks it against address.
// The secret may be a 64-byte keypair or a bare 32-byte seed.
func NewTrackedAccount(address, secretBase58 string) (domain.TrackedAccount, error) {
	pub, err := decodeAddress(address)
	if err != nil {
		return domain.TrackedAccount{}, err
	}

	secret, err := base58.Decode(secretBase58)
	if err != nil {
		return domain.TrackedAccount{}, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	if len(secret) != ed25519.PrivateKeySize && len(secret) != ed25519.SeedSize {
		return domain.TrackedAccount{}, fmt.Errorf("%w: length %d", ErrInvalidSecret, len(secret))
	}

	key := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	if !key.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(pub)) {
		return domain.TrackedAccount{}, fmt.Errorf("%w: %s", ErrKeyMismatch, address)
	}

	return domain.TrackedAccount{Address: address, Secret: secret}, nil
}

// Sign returns the base58 detached ed25519 signature of message.
func Sign(account domain.TrackedAccount, message string) (string, error) {
	if len(account.Secret) < ed25519.SeedSize {
		return "", ErrInvalidSecret
	}
	key := ed25519.NewKeyFromSeed(account.Secret[:ed25519.SeedSize])
	return base58.Encode(ed25519.Sign(key, []byte(message))), nil
}

// ValidAddress reports whether address is a base58 ed25519 public key.
func ValidAddress(address string) bool {
	_, err := decodeAddress(address)
	return err == nil
}

func decodeAddress(address string) ([]byte, error) {
	pub, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if !isOnCurve(pub) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	return pub, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != ed25519.PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
