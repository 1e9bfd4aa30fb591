// Package signer implements the low-S normalization and minimal DER
// encoding Fabric requires of every signature this module produces.
//
// Grounded on hyperledger/fabric's pkg/config.SigningIdentity.Sign and its
// toLowS helper: Fabric treats (r, -s mod n) as an equally valid signature
// to (r, s) and normalizes to the canonical low-S form to avoid signature
// malleability. This package performs that normalization plus the minimal
// ASN.1 INTEGER encoding by hand, rather than delegating to encoding/asn1,
// so the encoding's minimality is independently verifiable.
package signer

import (
	"crypto/elliptic"
	"math/big"

	"github.com/pkg/errors"
)

// rawLen is the length in bytes of the raw (R||S) ECDSA-P256 signature the
// custodian produces: 32 bytes of R followed by 32 bytes of S.
const rawLen = 64

// curveHalfOrder is half the order of the P-256 group, used to decide
// whether S needs reflecting into its low form.
var curveHalfOrder = new(big.Int).Rsh(elliptic.P256().Params().N, 1)

var curveOrder = elliptic.P256().Params().N

// Normalize takes the raw 64-byte (R||S) ECDSA-P256 signature produced by
// the identity custodian and returns it DER-encoded as
// SEQUENCE { INTEGER r, INTEGER s }, with S constrained to the lower half
// of the P-256 group order. This is the only signature encoding accepted
// anywhere in this module.
func Normalize(raw []byte) ([]byte, error) {
	if len(raw) != rawLen {
		return nil, errors.Errorf("raw signature must be %d bytes, got %d", rawLen, len(raw))
	}

	r := new(big.Int).SetBytes(raw[:32])
	s := new(big.Int).SetBytes(raw[32:])

	if s.Cmp(curveHalfOrder) == 1 {
		s = new(big.Int).Sub(curveOrder, s)
	}

	return encodeSequence(encodeInteger(r), encodeInteger(s)), nil
}

// encodeInteger produces a minimal ASN.1 INTEGER encoding of a non-negative
// big.Int: strip leading 0x00 bytes while the following byte's high bit is
// clear, then, if the remaining leading byte has its high bit set, prepend
// a single 0x00 so the value reads as positive in two's complement.
func encodeInteger(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}

	i := 0
	for i < len(b)-1 && b[i] == 0x00 && b[i+1]&0x80 == 0 {
		i++
	}
	b = b[i:]

	if b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}

	out := make([]byte, 0, 2+len(b))
	out = append(out, 0x02, byte(len(b)))
	out = append(out, b...)
	return out
}

// encodeSequence wraps the two INTEGER encodings in a SEQUENCE tag.
func encodeSequence(r, s []byte) []byte {
	body := make([]byte, 0, len(r)+len(s))
	body = append(body, r...)
	body = append(body, s...)

	out := make([]byte, 0, 2+len(body))
	out = append(out, 0x30, byte(len(body)))
	out = append(out, body...)
	return out
}
