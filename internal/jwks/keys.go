package jwks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"fmt"
	"math/big"
)

// KeyTypeEC is the JWK kty value for elliptic curve keys.
const KeyTypeEC = "EC"

// JWK is a single JSON Web Key as served by the app key set endpoint.
// Only EC public keys are usable for webhook verification; entries of
// other types are carried through so callers can skip them.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// ECPublicKey builds the ECDSA public key the JWK describes. It fails for
// non-EC key types, unknown curves, and coordinates that are missing or
// not base64url.
func (k *JWK) ECPublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != KeyTypeEC {
		return nil, fmt.Errorf("key type %q is not EC", k.Kty)
	}

	curve, err := curveFor(k.Crv)
	if err != nil {
		return nil, err
	}

	if k.X == "" || k.Y == "" {
		return nil, fmt.Errorf("key %q is missing a coordinate", k.Kid)
	}

	x, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("decoding x coordinate: %w", err)
	}
	y, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("decoding y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}

func curveFor(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}
}
