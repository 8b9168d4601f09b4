package tokens

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DPoPKey is the per-connection proof-of-possession keypair. It is
// generated once when the account is connected, exported into the
// account's credential blob, and reloaded for every call tied to that
// connection. Signing with a different keypair invalidates the token
// server-side.
type DPoPKey struct {
	key *ecdsa.PrivateKey
}

func GenerateDPoPKey() (*DPoPKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("error generating dpop key: %w", err)
	}
	return &DPoPKey{key: key}, nil
}

// Export serializes the keypair to a storable string (PKCS#8, base64).
func (k *DPoPKey) Export() (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		return "", fmt.Errorf("error exporting dpop key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

func ImportDPoPKey(encoded string) (*DPoPKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("error decoding dpop key: %w", err)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("error parsing dpop key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("credential blob does not contain an EC key")
	}
	return &DPoPKey{key: key}, nil
}

// PublicKey exposes the verification half, used by tests and by callers
// that need the key thumbprint.
func (k *DPoPKey) PublicKey() *ecdsa.PublicKey {
	return &k.key.PublicKey
}

// Sign attaches a DPoP proof for this request and the token it carries.
// Implements platform.RequestSigner.
func (k *DPoPKey) Sign(req *http.Request, accessToken string) error {
	jti, err := gonanoid.New()
	if err != nil {
		return err
	}

	htu := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path

	tokenHash := sha256.Sum256([]byte(accessToken))

	claims := jwt.MapClaims{
		"jti": jti,
		"htm": req.Method,
		"htu": htu,
		"iat": time.Now().Unix(),
		"ath": base64.RawURLEncoding.EncodeToString(tokenHash[:]),
	}

	proof := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	proof.Header["typ"] = "dpop+jwt"
	proof.Header["jwk"] = k.publicJWK()

	signed, err := proof.SignedString(k.key)
	if err != nil {
		return fmt.Errorf("error signing dpop proof: %w", err)
	}

	req.Header.Set("Authorization", "DPoP "+accessToken)
	req.Header.Set("DPoP", signed)
	return nil
}

func (k *DPoPKey) publicJWK() map[string]string {
	pub := k.key.PublicKey
	byteLen := (pub.Curve.Params().BitSize + 7) / 8
	x := pub.X.FillBytes(make([]byte, byteLen))
	y := pub.Y.FillBytes(make([]byte, byteLen))
	return map[string]string{
		"kty": "EC",
		"crv": "P-256",
		"x":   base64.RawURLEncoding.EncodeToString(x),
		"y":   base64.RawURLEncoding.EncodeToString(y),
	}
}
