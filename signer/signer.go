// Package signer holds the signing identity: an ed25519 key pair plus the next
// unused nonce for authenticated requests. Identities are explicit values
// passed to whoever needs to sign; there is no global signing state.
package signer

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/spooky-finn/go-exchange-client/helpers"
)

type SigningIdentity struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey

	nonceMu sync.Mutex
	nonce   uint64
}

// NewSigningIdentity loads an identity from a hex private key seed (with or
// without 0x prefix).
func NewSigningIdentity(privateKeyHex string) (*SigningIdentity, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	seed, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding private key hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &SigningIdentity{
		priv: priv,
		pub:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// GenerateSigningIdentity creates a fresh random identity.
func GenerateSigningIdentity() (*SigningIdentity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &SigningIdentity{priv: priv, pub: pub}, nil
}

// PublicKeyHex is the user id used in REST paths and stream topics.
func (s *SigningIdentity) PublicKeyHex() string {
	return hex.EncodeToString(s.pub)
}

// PublicKeyVec is the public key in the server's canonical JSON form, an array
// of byte values.
func (s *SigningIdentity) PublicKeyVec() []int {
	vec := make([]int, len(s.pub))
	for i, b := range s.pub {
		vec[i] = int(b)
	}
	return vec
}

// Sign produces a deterministic ed25519 signature over the compacted payload.
// The server strips spaces, CR and LF before verifying, so the client must
// sign the exact same byte sequence.
func (s *SigningIdentity) Sign(payload []byte) []int {
	sig := ed25519.Sign(s.priv, helpers.CompactSignable(payload))

	vec := make([]int, len(sig))
	for i, b := range sig {
		vec[i] = int(b)
	}
	return vec
}

// NextNonce allocates the next nonce. Allocation is serialized: concurrent
// submissions get pairwise distinct, contiguous values with no reuse.
func (s *SigningIdentity) NextNonce() uint64 {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()

	n := s.nonce
	s.nonce++
	return n
}

// Nonce reports the next unused value without consuming it.
func (s *SigningIdentity) Nonce() uint64 {
	s.nonceMu.Lock()
	defer s.nonceMu.Unlock()
	return s.nonce
}
