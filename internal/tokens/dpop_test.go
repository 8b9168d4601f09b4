package tokens

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDPoPKeyExportImportRoundTrip(t *testing.T) {
	key, err := GenerateDPoPKey()
	require.NoError(t, err)

	encoded, err := key.Export()
	require.NoError(t, err)
	require.NotEmpty(t, encoded)

	restored, err := ImportDPoPKey(encoded)
	require.NoError(t, err)
	assert.True(t, key.PublicKey().Equal(restored.PublicKey()))
}

func TestImportDPoPKeyRejectsGarbage(t *testing.T) {
	_, err := ImportDPoPKey("not base64 !!!")
	assert.Error(t, err)

	_, err = ImportDPoPKey(base64.StdEncoding.EncodeToString([]byte("not a key")))
	assert.Error(t, err)
}

func TestDPoPSignAttachesProof(t *testing.T) {
	key, err := GenerateDPoPKey()
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "https://pds.example.com/xrpc/com.atproto.repo.createRecord?seq=1", nil)
	require.NoError(t, err)

	require.NoError(t, key.Sign(req, "access-token"))

	assert.Equal(t, "DPoP access-token", req.Header.Get("Authorization"))

	proof := req.Header.Get("DPoP")
	require.NotEmpty(t, proof)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(proof, claims, func(tok *jwt.Token) (any, error) {
		require.IsType(t, &jwt.SigningMethodECDSA{}, tok.Method)
		return key.PublicKey(), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "dpop+jwt", parsed.Header["typ"])
	jwk, ok := parsed.Header["jwk"].(map[string]any)
	require.True(t, ok, "proof header carries the public key")
	assert.Equal(t, "EC", jwk["kty"])
	assert.Equal(t, "P-256", jwk["crv"])

	assert.Equal(t, "POST", claims["htm"])
	// htu excludes the query string.
	assert.Equal(t, "https://pds.example.com/xrpc/com.atproto.repo.createRecord", claims["htu"])
	assert.NotEmpty(t, claims["jti"])

	hash := sha256.Sum256([]byte("access-token"))
	assert.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), claims["ath"])
}

func TestDPoPProofsAreUnique(t *testing.T) {
	key, err := GenerateDPoPKey()
	require.NoError(t, err)

	jtis := map[string]bool{}
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest("GET", "https://pds.example.com/xrpc/ping", nil)
		require.NoError(t, err)
		require.NoError(t, key.Sign(req, "tok"))

		parts := strings.Split(req.Header.Get("DPoP"), ".")
		require.Len(t, parts, 3)

		claims := jwt.MapClaims{}
		_, _, err = jwt.NewParser().ParseUnverified(req.Header.Get("DPoP"), claims)
		require.NoError(t, err)
		jtis[claims["jti"].(string)] = true
	}
	assert.Len(t, jtis, 3)
}
