package service

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/ridwanfathin/invoice-fetcher-service/internal/domain"
)

const (
	maxIDLength = 40
	idHashChars = 8
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

// FileName builds the deterministic on-disk name of an invoice:
// <provider>_<YYYY-MM-DD>_<id>.pdf when the date is known, <provider>_<id>.pdf otherwise.
// An id altered by sanitising or truncation gets a hash suffix of the raw id,
// so distinct ids never share a file.
func FileName(provider, orderID string, date domain.DateOnly) string {
	id := safeID(orderID)
	if date.Known() {
		return provider + "_" + date.ISO() + "_" + id + ".pdf"
	}
	return provider + "_" + id + ".pdf"
}

func safeID(orderID string) string {
	id := unsafeNameChars.ReplaceAllString(orderID, "_")
	if id == orderID && len(id) <= maxIDLength {
		return id
	}

	sum := sha256.Sum256([]byte(orderID))
	suffix := hex.EncodeToString(sum[:])[:idHashChars]
	if keep := maxIDLength - idHashChars - 1; len(id) > keep {
		id = id[:keep]
	}
	return id + "-" + suffix
}

// ContentID derives a registry key from document bytes for candidates
// whose listing id is positional
func ContentID(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256-" + hex.EncodeToString(sum[:8])
}
