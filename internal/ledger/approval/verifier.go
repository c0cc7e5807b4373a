// Package approval verifies counterparty consent for deposit release.
//
// The proposer signs nothing: the counterparty (or the platform acting on
// a recorded consent) presents a token that must match the HMAC of the
// exact pending proposal. The nonce is bumped on every re-proposal, so a
// token issued for a superseded split can never release the deposit.
package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Verifier checks an approval token against a proposal digest.
type Verifier interface {
	Verify(digest []byte, token string) bool
}

// Digest canonicalizes the parameters an approval covers. Any change to
// booking, parties, split or nonce yields a different digest.
func Digest(bookingID, tenantID, landlordID string, tenantBps, nonce int64) []byte {
	payload := fmt.Sprintf("%s|%s|%s|%d|%d", bookingID, tenantID, landlordID, tenantBps, nonce)
	sum := sha256.Sum256([]byte(payload))
	return sum[:]
}

type hmacVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) Verifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) Verify(digest []byte, token string) bool {
	expected, err := hex.DecodeString(token)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(digest)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign produces the token Verify accepts for the digest. Used by the
// consent flow that issues approvals and by tests.
func Sign(secret string, digest []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(digest)
	return hex.EncodeToString(mac.Sum(nil))
}
