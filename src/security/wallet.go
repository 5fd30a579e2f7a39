package security

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrChecksumMismatch = errors.New("wallet address checksum mismatch")
)

// ValidateAddress checks a 0x-prefixed 20 byte hex address. All-lowercase and
// all-uppercase forms carry no checksum and are accepted; mixed case must
// match EIP-55.
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%w: missing 0x prefix", ErrInvalidAddress)
	}
	body := addr[2:]
	if len(body) != 40 {
		return fmt.Errorf("%w: expected 40 hex chars, got %d", ErrInvalidAddress, len(body))
	}
	if _, err := hex.DecodeString(body); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return nil
	}
	if want := ChecksumAddress(addr); want[2:] != body {
		return fmt.Errorf("%w: expected %s", ErrChecksumMismatch, want)
	}
	return nil
}

// ChecksumAddress returns the EIP-55 mixed-case form. The input is assumed to
// be a well-formed hex address.
func ChecksumAddress(addr string) string {
	lower := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	hash := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && hash[i] >= '8' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}
