package homenc

import (
	"fmt"
	"math/big"
)

// plainScheme is a Scheme that performs ordinary integer arithmetic under
// the opaque handle. It enforces the same width and access rules as the
// Paillier backend, so contract code and tests exercise identical paths
// without key material. Not for production use: the "ciphertext" is just
// the hex plaintext.
type plainScheme struct{}

// NewPlain returns the plaintext development/test backend.
func NewPlain() Scheme { return plainScheme{} }

func (plainScheme) value(v Value) (uint64, error) {
	if v.IsZero() {
		return 0, fmt.Errorf("homenc: operand is not an encrypted value")
	}
	z, err := bigFromHex(v.C)
	if err != nil {
		return 0, err
	}
	if !z.IsUint64() {
		return 0, fmt.Errorf("homenc: plain handle out of range")
	}
	return z.Uint64(), nil
}

func (plainScheme) encode(plain uint64, width int, acl []string) Value {
	return Value{Width: width, C: hexFromBig(new(big.Int).SetUint64(plain)), ACL: acl}
}

func (s plainScheme) Encrypt(plain uint64, width int) (Value, error) {
	if !validWidth(width) {
		return Value{}, fmt.Errorf("homenc: unsupported width %d", width)
	}
	if plain > maxForWidth(width) {
		return Value{}, fmt.Errorf("homenc: plaintext %d exceeds width %d", plain, width)
	}
	return s.encode(plain, width, nil), nil
}

func (s plainScheme) Add(a, b Value) (Value, error) {
	if err := checkPair(a, b); err != nil {
		return Value{}, err
	}
	x, err := s.value(a)
	if err != nil {
		return Value{}, err
	}
	y, err := s.value(b)
	if err != nil {
		return Value{}, err
	}
	sum := x + y
	if sum > maxForWidth(a.Width) {
		return Value{}, fmt.Errorf("homenc: overflow at width %d", a.Width)
	}
	return s.encode(sum, a.Width, a.ACL), nil
}

func (s plainScheme) Sub(a, b Value) (Value, error) {
	if err := checkPair(a, b); err != nil {
		return Value{}, err
	}
	x, err := s.value(a)
	if err != nil {
		return Value{}, err
	}
	y, err := s.value(b)
	if err != nil {
		return Value{}, err
	}
	if y > x {
		return Value{}, fmt.Errorf("homenc: negative result at width %d", a.Width)
	}
	return s.encode(x-y, a.Width, a.ACL), nil
}

func (s plainScheme) Widen(v Value, width int) (Value, error) {
	if !validWidth(width) {
		return Value{}, fmt.Errorf("homenc: unsupported width %d", width)
	}
	if width < v.Width {
		return Value{}, fmt.Errorf("homenc: widen cannot narrow %d to %d", v.Width, width)
	}
	if _, err := s.value(v); err != nil {
		return Value{}, err
	}
	out := v
	out.Width = width
	return out, nil
}

func (plainScheme) Grant(v Value, principal string) Value { return v.withGrant(principal) }

func (s plainScheme) Decrypt(v Value, principal string) (uint64, error) {
	if !v.CanAccess(principal) {
		return 0, fmt.Errorf("homenc: principal %q has no access to this value", principal)
	}
	return s.value(v)
}
