package homenc

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
)

// PaillierKey holds the key material for the Paillier backend. N, G and N2
// are public; Lambda and Mu form the private decryption key and are present
// only where decryption is supposed to happen.
type PaillierKey struct {
	N      *big.Int
	G      *big.Int
	N2     *big.Int
	Lambda *big.Int
	Mu     *big.Int
}

// paillierKeyJSON is the hex wire form used by MarshalJSON/ParsePaillierKey.
type paillierKeyJSON struct {
	N      string `json:"n"`
	G      string `json:"g"`
	N2     string `json:"n2,omitempty"`
	Lambda string `json:"lambda,omitempty"`
	Mu     string `json:"mu,omitempty"`
}

// GeneratePaillierKey produces a fresh keypair with an n of the given bit
// size, using the g = n+1 simplification (lambda = phi(n), mu = phi(n)^-1).
func GeneratePaillierKey(random io.Reader, bits int) (*PaillierKey, error) {
	if bits < 64 {
		return nil, fmt.Errorf("homenc: paillier modulus too small: %d bits", bits)
	}
	for {
		p, err := rand.Prime(random, bits/2)
		if err != nil {
			return nil, fmt.Errorf("homenc: prime generation: %w", err)
		}
		q, err := rand.Prime(random, bits-bits/2)
		if err != nil {
			return nil, fmt.Errorf("homenc: prime generation: %w", err)
		}
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		one := big.NewInt(1)
		lambda := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
		mu := new(big.Int).ModInverse(lambda, n)
		if mu == nil {
			continue
		}
		return &PaillierKey{
			N:      n,
			G:      new(big.Int).Add(n, one),
			N2:     new(big.Int).Mul(n, n),
			Lambda: lambda,
			Mu:     mu,
		}, nil
	}
}

// ParsePaillierKey decodes a key from its hex JSON form. Lambda/Mu may be
// absent, yielding an encrypt-only key.
func ParsePaillierKey(raw []byte) (*PaillierKey, error) {
	var w paillierKeyJSON
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("homenc: paillier key json: %w", err)
	}
	if w.N == "" {
		return nil, fmt.Errorf("homenc: paillier key missing n")
	}
	n, err := bigFromHex(w.N)
	if err != nil {
		return nil, fmt.Errorf("homenc: paillier key n: %w", err)
	}
	k := &PaillierKey{N: n, N2: new(big.Int).Mul(n, n)}
	if w.G != "" {
		if k.G, err = bigFromHex(w.G); err != nil {
			return nil, fmt.Errorf("homenc: paillier key g: %w", err)
		}
	} else {
		k.G = new(big.Int).Add(n, big.NewInt(1))
	}
	if w.N2 != "" {
		if k.N2, err = bigFromHex(w.N2); err != nil {
			return nil, fmt.Errorf("homenc: paillier key n2: %w", err)
		}
	}
	if w.Lambda != "" {
		if k.Lambda, err = bigFromHex(w.Lambda); err != nil {
			return nil, fmt.Errorf("homenc: paillier key lambda: %w", err)
		}
	}
	if w.Mu != "" {
		if k.Mu, err = bigFromHex(w.Mu); err != nil {
			return nil, fmt.Errorf("homenc: paillier key mu: %w", err)
		}
	}
	return k, nil
}

// MarshalJSON emits the canonical hex form, including the private part when
// present.
func (k *PaillierKey) MarshalJSON() ([]byte, error) {
	w := paillierKeyJSON{N: hexFromBig(k.N), G: hexFromBig(k.G), N2: hexFromBig(k.N2)}
	if k.Lambda != nil {
		w.Lambda = hexFromBig(k.Lambda)
	}
	if k.Mu != nil {
		w.Mu = hexFromBig(k.Mu)
	}
	return json.Marshal(w)
}

type paillierScheme struct {
	key *PaillierKey
}

// NewPaillier wraps a key in a Scheme. Decrypt fails if the key has no
// private part.
func NewPaillier(key *PaillierKey) Scheme {
	return &paillierScheme{key: key}
}

// ciphertextOK rejects operands that are out of range or not invertible
// mod n², the cheap sanity applied before any modular arithmetic.
func (s *paillierScheme) ciphertextOK(c *big.Int) error {
	one := big.NewInt(1)
	if c.Cmp(one) < 0 || c.Cmp(s.key.N2) >= 0 {
		return fmt.Errorf("homenc: ciphertext out of range")
	}
	if new(big.Int).GCD(nil, nil, c, s.key.N2).Cmp(one) != 0 {
		return fmt.Errorf("homenc: ciphertext not invertible mod n²")
	}
	return nil
}

// operand decodes and sanity-checks the ciphertext carried by a handle.
func (s *paillierScheme) operand(v Value) (*big.Int, error) {
	if v.IsZero() {
		return nil, fmt.Errorf("homenc: operand is not an encrypted value")
	}
	c, err := bigFromHex(v.C)
	if err != nil {
		return nil, err
	}
	if err := s.ciphertextOK(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *paillierScheme) Encrypt(plain uint64, width int) (Value, error) {
	if !validWidth(width) {
		return Value{}, fmt.Errorf("homenc: unsupported width %d", width)
	}
	if plain > maxForWidth(width) {
		return Value{}, fmt.Errorf("homenc: plaintext %d exceeds width %d", plain, width)
	}
	m := new(big.Int).SetUint64(plain)
	if m.Cmp(s.key.N) >= 0 {
		return Value{}, fmt.Errorf("homenc: plaintext outside message space")
	}
	r, err := randomUnit(s.key.N)
	if err != nil {
		return Value{}, err
	}
	// c = g^m * r^n mod n²
	gm := new(big.Int).Exp(s.key.G, m, s.key.N2)
	rn := new(big.Int).Exp(r, s.key.N, s.key.N2)
	return Value{Width: width, C: hexFromBig(mulMod(gm, rn, s.key.N2))}, nil
}

func (s *paillierScheme) Add(a, b Value) (Value, error) {
	if err := checkPair(a, b); err != nil {
		return Value{}, err
	}
	ca, err := s.operand(a)
	if err != nil {
		return Value{}, err
	}
	cb, err := s.operand(b)
	if err != nil {
		return Value{}, err
	}
	return Value{Width: a.Width, C: hexFromBig(mulMod(ca, cb, s.key.N2)), ACL: a.ACL}, nil
}

func (s *paillierScheme) Sub(a, b Value) (Value, error) {
	if err := checkPair(a, b); err != nil {
		return Value{}, err
	}
	ca, err := s.operand(a)
	if err != nil {
		return Value{}, err
	}
	cb, err := s.operand(b)
	if err != nil {
		return Value{}, err
	}
	inv := new(big.Int).ModInverse(cb, s.key.N2)
	if inv == nil {
		return Value{}, fmt.Errorf("homenc: ciphertext not invertible mod n²")
	}
	return Value{Width: a.Width, C: hexFromBig(mulMod(ca, inv, s.key.N2)), ACL: a.ACL}, nil
}

func (s *paillierScheme) Widen(v Value, width int) (Value, error) {
	if !validWidth(width) {
		return Value{}, fmt.Errorf("homenc: unsupported width %d", width)
	}
	if width < v.Width {
		return Value{}, fmt.Errorf("homenc: widen cannot narrow %d to %d", v.Width, width)
	}
	if _, err := s.operand(v); err != nil {
		return Value{}, err
	}
	// The Paillier message space already covers the wide range; widening is
	// a retag that keeps accumulation code width-correct.
	out := v
	out.Width = width
	return out, nil
}

func (s *paillierScheme) Grant(v Value, principal string) Value {
	return v.withGrant(principal)
}

func (s *paillierScheme) Decrypt(v Value, principal string) (uint64, error) {
	if !v.CanAccess(principal) {
		return 0, fmt.Errorf("homenc: principal %q has no access to this value", principal)
	}
	if s.key.Lambda == nil || s.key.Mu == nil {
		return 0, fmt.Errorf("homenc: key has no private part")
	}
	c, err := s.operand(v)
	if err != nil {
		return 0, err
	}
	// m = L(c^lambda mod n²) * mu mod n, L(u) = (u-1)/n
	u := new(big.Int).Exp(c, s.key.Lambda, s.key.N2)
	u.Sub(u, big.NewInt(1)).Div(u, s.key.N)
	m := mulMod(u, s.key.Mu, s.key.N)
	if !m.IsUint64() || m.Uint64() > maxForWidth(v.Width) {
		return 0, fmt.Errorf("homenc: decrypted value exceeds width %d", v.Width)
	}
	return m.Uint64(), nil
}

// randomUnit draws r in [1, n) with gcd(r, n) = 1.
func randomUnit(n *big.Int) (*big.Int, error) {
	one := big.NewInt(1)
	for {
		r, err := rand.Int(rand.Reader, n)
		if err != nil {
			return nil, fmt.Errorf("homenc: randomness: %w", err)
		}
		if r.Sign() == 0 {
			continue
		}
		if new(big.Int).GCD(nil, nil, r, n).Cmp(one) == 0 {
			return r, nil
		}
	}
}
