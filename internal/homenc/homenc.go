// Package homenc provides the homomorphic-encryption capability consumed by
// the jury chaincode: an opaque, JSON-serializable ciphertext handle and a
// pluggable Scheme that can encrypt, combine and (for granted principals)
// decrypt those handles.
//
// The contract never inspects ciphertext bytes; it stores Value handles in
// ledger records and drives all arithmetic through a Scheme. Two backends
// ship with the package: a Paillier scheme for deployments and a plaintext
// scheme for tests and local development.
package homenc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Supported handle widths, in bits. A juror's choice is a narrow 0/1 value;
// the running tallies use the wide form so up to a full jury of votes can be
// accumulated without overflow.
const (
	WidthBit   = 8
	WidthTally = 32
)

// Value is an opaque handle to an encrypted integer. It is safe to embed in
// ledger JSON: the ciphertext is carried as canonical lowercase hex and the
// ACL lists the principals allowed to decrypt.
type Value struct {
	Width int      `json:"width"`
	C     string   `json:"c"`
	ACL   []string `json:"acl,omitempty"`
}

// IsZero reports whether the handle is the zero Value (never produced by a
// Scheme), which callers use to detect uninitialized fields.
func (v Value) IsZero() bool { return v.C == "" && v.Width == 0 }

// CanAccess reports whether principal has been granted decryption access.
func (v Value) CanAccess(principal string) bool {
	for _, p := range v.ACL {
		if p == principal {
			return true
		}
	}
	return false
}

// withGrant returns a copy of v whose ACL additionally contains principal.
func (v Value) withGrant(principal string) Value {
	if v.CanAccess(principal) {
		return v
	}
	out := v
	out.ACL = append(append([]string(nil), v.ACL...), principal)
	return out
}

// Scheme is the capability surface the contract programs against.
//
// Add and Sub require both operands to share a width; Widen re-encodes a
// value at a strictly wider width. Decrypt succeeds only for principals that
// were previously granted access on the handle.
type Scheme interface {
	Encrypt(plain uint64, width int) (Value, error)
	Add(a, b Value) (Value, error)
	Sub(a, b Value) (Value, error)
	Widen(v Value, width int) (Value, error)
	Grant(v Value, principal string) Value
	Decrypt(v Value, principal string) (uint64, error)
}

// validWidth reports whether w is one of the supported handle widths.
func validWidth(w int) bool { return w == WidthBit || w == WidthTally }

// maxForWidth returns the largest plaintext representable at width w.
func maxForWidth(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// checkPair validates that two operands are well-formed and width-compatible.
func checkPair(a, b Value) error {
	if a.IsZero() || b.IsZero() {
		return fmt.Errorf("homenc: operand is not an encrypted value")
	}
	if a.Width != b.Width {
		return fmt.Errorf("homenc: width mismatch %d vs %d", a.Width, b.Width)
	}
	return nil
}

// bigFromHex parses a hex string (with or without 0x, odd lengths padded)
// into a big.Int. Decimal is accepted as a fallback.
func bigFromHex(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if b, err := hex.DecodeString(s); err == nil {
		return new(big.Int).SetBytes(b), nil
	}
	if z, ok := new(big.Int).SetString(s, 10); ok {
		return z, nil
	}
	return nil, fmt.Errorf("homenc: bad hex integer: %q", s)
}

// hexFromBig encodes a big.Int as canonical lowercase hex: no 0x prefix and
// no leading zeros, with zero normalized to "0".
func hexFromBig(x *big.Int) string {
	if x == nil || x.Sign() == 0 {
		return "0"
	}
	s := strings.TrimLeft(strings.ToLower(x.Text(16)), "0")
	if s == "" {
		return "0"
	}
	return s
}

// mulMod returns (x*y) mod m.
func mulMod(x, y, m *big.Int) *big.Int {
	z := new(big.Int).Mul(x, y)
	return z.Mod(z, m)
}
