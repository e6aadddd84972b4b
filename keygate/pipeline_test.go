package keygate

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, clock Clock) *verifier {
	t.Helper()
	v, err := newVerifier(testPublicKeyHex, clock)
	require.NoError(t, err)
	return v
}

func TestVerifyLive(t *testing.T) {
	priv := testPrivateKey()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	v := newTestVerifier(t, clock)

	t.Run("signed response passes", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody("PRO"))
		body, err := v.verifyLive(resp)
		require.NoError(t, err)
		assert.Equal(t, resp.Body, body)
	})

	t.Run("missing signature header", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.Signature = ""
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureMissing)
	})

	t.Run("missing date header", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.Date = ""
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureMissing)
	})

	t.Run("unparseable signature header", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.Signature = "garbage"
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("tampered body fails digest before signature", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.Body = invalidBody("TAMPERED", "swapped")
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrDigestMismatch)
	})

	t.Run("tampered digest header fails signature", func(t *testing.T) {
		// Digest rewritten to match a forged body: the digest check passes
		// but the signature no longer covers the header value.
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.Body = invalidBody("FORGED", "forged")
		resp.Digest = formatDigestHeader(resp.Body)
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		otherKey := make([]byte, 32)
		wrong := &verifier{key: otherKey, clock: clock}
		resp := signResponse(priv, testPath, testHost, now, validBody())
		_, err := wrong.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("rebinding to a different path fails", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.RequestPath = "/v1/accounts/other/licenses/actions/validate-key"
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("replayed stale response rejected", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now.Add(-10*time.Minute), validBody())
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrResponseTooOld)
	})

	t.Run("future-dated response rejected", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now.Add(5*time.Minute), validBody())
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrResponseFromFuture)
	})

	t.Run("signature valid but date header mutated", func(t *testing.T) {
		resp := signResponse(priv, testPath, testHost, now, validBody())
		resp.Date = now.Add(-time.Minute).UTC().Format(http.TimeFormat)
		_, err := v.verifyLive(resp)
		assert.ErrorIs(t, err, ErrSignatureInvalid)
	})

	t.Run("response without digest header still verifies", func(t *testing.T) {
		body := validBody()
		dateHeader := now.UTC().Format(http.TimeFormat)
		signingString := buildSigningString("post", testPath, testHost, dateHeader, "")
		resp := signResponse(priv, testPath, testHost, now, body)
		resp.Digest = ""
		resp.Signature = signedHeader(priv, signingString)
		resp.Body = body

		out, err := v.verifyLive(resp)
		require.NoError(t, err)
		assert.Equal(t, body, out)
	})
}
