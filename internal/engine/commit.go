package engine

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Commitment hashing for the commit-reveal protocol.
//
// Both hashes use SHA3-256 over a pipe-delimited canonical encoding.
// Bidders must encode maxPrice with decimal.String (no trailing zeros,
// no exponent) or the reveal will not match.

// CommitmentHash computes H(bidder, auctionID, maxPrice, nonce), the
// value a bidder submits during the commit phase.
func CommitmentHash(bidder string, auctionID uint64, maxPrice decimal.Decimal, nonce string) string {
	sum := sha3.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%s", bidder, auctionID, maxPrice.String(), nonce)))
	return hex.EncodeToString(sum[:])
}

// CommitID computes H(bidder, auctionID, commitTime), the handle a
// bidder must present at reveal time, binding the reveal to the exact
// stored commitment (a re-commit changes the id).
func CommitID(bidder string, auctionID uint64, commitTime time.Time) string {
	sum := sha3.Sum256([]byte(fmt.Sprintf("%s|%d|%d", bidder, auctionID, commitTime.UnixNano())))
	return hex.EncodeToString(sum[:])
}
