/*
validate.go - Input validation and normalization

PURPOSE:
  Everything a purchase report must satisfy before the store is touched.
  Addresses are strict (0x + 40 hex, stored lower-case). Settlement hashes
  are deliberately loose (0x + at least one hex digit) so the synthesized
  hashes of off-chain token purchases pass the same gate as chain hashes.

SEE ALSO:
  - ingest.go: calls these before building records
*/
package ledger

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hashPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
)

// NormalizeAddress validates an address and returns its canonical lower-case
// form.
func NormalizeAddress(field, raw string) (Address, error) {
	if raw == "" {
		return "", &ValidationError{Field: field, Reason: "required"}
	}
	if !addressPattern.MatchString(raw) {
		return "", &ValidationError{Field: field, Reason: "must be 0x followed by 40 hex digits"}
	}
	return Address(strings.ToLower(raw)), nil
}

// NormalizeHash validates a settlement hash and returns its canonical
// lower-case form.
func NormalizeHash(field, raw string) (SettlementHash, error) {
	if raw == "" {
		return "", &ValidationError{Field: field, Reason: "required"}
	}
	if !hashPattern.MatchString(raw) {
		return "", &ValidationError{Field: field, Reason: "must be 0x followed by hex digits"}
	}
	return SettlementHash(strings.ToLower(raw)), nil
}

// ParsePrice parses a decimal price string and rejects negatives.
func ParsePrice(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, &ValidationError{Field: field, Reason: "required"}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "not a decimal number"}
	}
	if d.IsNegative() {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return d, nil
}

// ParseKind validates a purchase kind against the allowed set.
func ParseKind(field, raw string) (Kind, error) {
	switch Kind(raw) {
	case KindCatalogPurchase, KindOnchainItemPurchase:
		return Kind(raw), nil
	case "":
		return "", &ValidationError{Field: field, Reason: "required"}
	default:
		return "", &ValidationError{Field: field, Reason: "unknown purchase kind"}
	}
}

// ParseNetwork validates a network name, falling back to def when empty.
func ParseNetwork(field, raw string, def Network) (Network, error) {
	if raw == "" {
		return def, nil
	}
	n := Network(raw)
	if !n.Supported() {
		return "", &ValidationError{Field: field, Reason: "unsupported network"}
	}
	return n, nil
}
