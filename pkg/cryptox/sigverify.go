package cryptox

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/hex"
	"math/big"
	"strings"
)

// Verification strategy names, in the order they are attempted. Client
// signing libraries disagree on signature encoding (fixed-length r||s vs
// ASN.1 DER) and on whether the message was digested before signing, so the
// verifier tries a small fixed set of interpretations of the same
// (message, signature, key) triple and the first success wins.
const (
	StrategyRawDigest  = "raw_digest"  // r||s signature over SHA-256(message)
	StrategyDERDigest  = "der_digest"  // DER signature over SHA-256(message)
	StrategyRawMessage = "raw_message" // either encoding over the undigested message
)

const (
	curveByteLen         = 32 // P-256 coordinate / scalar width
	rawSignatureLen      = 2 * curveByteLen
	derMarker            = 0x30 // leading byte of an ASN.1 SEQUENCE
	uncompressedPointTag = 0x04
)

// ecdsaSignature mirrors the ASN.1 SEQUENCE { r INTEGER, s INTEGER } layout
// of a DER-encoded ECDSA signature. asn1.Unmarshal strips the sign-padding
// bytes for us.
type ecdsaSignature struct {
	R, S *big.Int
}

// VerifyDeviceSignature checks an ECDSA P-256 signature over message against
// a hex-encoded public key, tolerating both supported client signature
// encodings. It reports the name of the strategy that matched and whether any
// matched at all.
//
// The raw-message fallback accepts signatures over the undigested message and
// is therefore a weaker guarantee; it only runs when allowRawMessage is set.
// Malformed input of any kind is a verification failure, never an error or a
// panic.
func VerifyDeviceSignature(
	message []byte,
	signatureHex, publicKeyHex string,
	allowRawMessage bool,
) (strategy string, ok bool) {
	pub := parseP256PublicKey(publicKeyHex)
	if pub == nil {
		return "", false
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) == 0 {
		return "", false
	}

	digest := sha256.Sum256(message)

	type step struct {
		name   string
		verify func() bool
	}
	steps := []step{
		{StrategyRawDigest, func() bool {
			r, s := splitRawSignature(sig)
			return r != nil && ecdsa.Verify(pub, digest[:], r, s)
		}},
		{StrategyDERDigest, func() bool {
			r, s := decodeDERSignature(sig)
			return r != nil && ecdsa.Verify(pub, digest[:], r, s)
		}},
		{StrategyRawMessage, func() bool {
			if !allowRawMessage {
				return false
			}
			if r, s := splitRawSignature(sig); r != nil && ecdsa.Verify(pub, message, r, s) {
				return true
			}
			r, s := decodeDERSignature(sig)
			return r != nil && ecdsa.Verify(pub, message, r, s)
		}},
	}

	for _, st := range steps {
		if st.verify() {
			return st.name, true
		}
	}
	return "", false
}

// EncodeRawSignature packs r and s into the fixed-length 64-byte form,
// left-padding each component to the curve width. Used by tests and client
// tooling.
func EncodeRawSignature(r, s *big.Int) []byte {
	out := make([]byte, rawSignatureLen)
	r.FillBytes(out[:curveByteLen])
	s.FillBytes(out[curveByteLen:])
	return out
}

// ValidPublicKey reports whether publicKeyHex decodes to a point on
// P-256, in either accepted encoding. Used to reject bad keys at
// registration before they poison later verifications.
func ValidPublicKey(publicKeyHex string) bool {
	return parseP256PublicKey(publicKeyHex) != nil
}

// NormalizePublicKey strips the uncompressed-point tag so the two
// accepted encodings of the same key compare equal. Invalid keys come
// back unchanged.
func NormalizePublicKey(publicKeyHex string) string {
	raw, err := hex.DecodeString(strings.TrimSpace(publicKeyHex))
	if err != nil {
		return publicKeyHex
	}
	if len(raw) == 1+2*curveByteLen && raw[0] == uncompressedPointTag {
		raw = raw[1:]
	}
	return hex.EncodeToString(raw)
}

// parseP256PublicKey decodes a hex-encoded P-256 point. Both the SEC1
// uncompressed form (0x04 || X || Y) and the bare X || Y concatenation are
// accepted. Returns nil for anything that is not a valid point on the curve.
func parseP256PublicKey(publicKeyHex string) *ecdsa.PublicKey {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil
	}

	switch len(raw) {
	case 1 + 2*curveByteLen:
		if raw[0] != uncompressedPointTag {
			return nil
		}
		raw = raw[1:]
	case 2 * curveByteLen:
		// bare coordinates
	default:
		return nil
	}

	x := new(big.Int).SetBytes(raw[:curveByteLen])
	y := new(big.Int).SetBytes(raw[curveByteLen:])

	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return nil
	}

	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
}

// splitRawSignature interprets sig as the fixed-length two-integer
// concatenation. Returns nils when the length doesn't fit.
func splitRawSignature(sig []byte) (r, s *big.Int) {
	if len(sig) != rawSignatureLen {
		return nil, nil
	}
	r = new(big.Int).SetBytes(sig[:curveByteLen])
	s = new(big.Int).SetBytes(sig[curveByteLen:])
	if r.Sign() == 0 || s.Sign() == 0 {
		return nil, nil
	}
	return r, s
}

// decodeDERSignature interprets sig as ASN.1 DER. Returns nils when the
// marker byte is absent or the structure doesn't parse cleanly.
func decodeDERSignature(sig []byte) (r, s *big.Int) {
	if sig[0] != derMarker {
		return nil, nil
	}
	var decoded ecdsaSignature
	rest, err := asn1.Unmarshal(sig, &decoded)
	if err != nil || len(rest) != 0 {
		return nil, nil
	}
	if decoded.R == nil || decoded.S == nil || decoded.R.Sign() <= 0 || decoded.S.Sign() <= 0 {
		return nil, nil
	}
	return decoded.R, decoded.S
}
