// Package address derives the deterministic on-chain account identifier
// from a validated identity token and its salt. Derivation is pure: the
// same (issuer, audience, key claim, salt) always produces the same
// address, and a different salt produces an unrelated one.
package address

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/farelight/zkauth/internal/authn/domain"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrInvalidSalt reports an empty or missing salt. This is a programming
	// error in the calling pipeline, not a runtime condition.
	ErrInvalidSalt = errors.New("address: invalid salt")

	// ErrInvalidClaim reports a token with an empty key claim or audience.
	ErrInvalidClaim = errors.New("address: invalid claim")
)

// addressFlag is the scheme byte for federated-identity accounts,
// distinguishing them from plain keypair accounts in the same address space.
const addressFlag byte = 0x05

// Derive computes the account address:
//
//	seed    = H(keyClaimName ‖ keyClaimValue ‖ audience ‖ H(salt))
//	address = H(flag ‖ issuer ‖ seed)
//
// with H = blake2b-256. Hashing the salt before mixing keeps raw salt bytes
// out of the seed preimage.
func Derive(token domain.IdentityToken, salt []byte, keyClaimName string) (domain.Address, error) {
	if len(salt) == 0 {
		return "", ErrInvalidSalt
	}
	if keyClaimName == "" || token.KeyClaimValue == "" {
		return "", fmt.Errorf("%w: empty key claim", ErrInvalidClaim)
	}
	if token.Audience == "" {
		return "", fmt.Errorf("%w: empty audience", ErrInvalidClaim)
	}
	if token.Issuer == "" {
		return "", fmt.Errorf("%w: empty issuer", ErrInvalidClaim)
	}

	saltDigest := blake2b.Sum256(salt)

	seedHash, _ := blake2b.New256(nil)
	seedHash.Write([]byte(keyClaimName))
	seedHash.Write([]byte(token.KeyClaimValue))
	seedHash.Write([]byte(token.Audience))
	seedHash.Write(saltDigest[:])
	seed := seedHash.Sum(nil)

	addrHash, _ := blake2b.New256(nil)
	addrHash.Write([]byte{addressFlag})
	addrHash.Write([]byte(token.Issuer))
	addrHash.Write(seed)
	sum := addrHash.Sum(nil)

	return domain.Address("0x" + hex.EncodeToString(sum)), nil
}
