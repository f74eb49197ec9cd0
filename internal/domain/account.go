package domain

import "time"

// TrackedAccount is a wallet/key pair this service controls. It is used to
// authenticate upstream and to follow third-party wallets.
// The cached bearer credential lives in auth.Store, keyed by Address.
type TrackedAccount struct {
	Address string // base58 public key
	Secret  []byte // decoded keypair bytes, first 32 bytes are the ed25519 seed
}

// Credential is a bearer token issued by the upstream login flow.
type Credential struct {
	Token      string
	AcquiredAt time.Time
}
