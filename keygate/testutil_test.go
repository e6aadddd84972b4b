package keygate

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
)

// RFC 8032 test vector keypair. Deterministic, so signed fixtures are
// reproducible across runs.
const (
	testSeedHex      = "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	testPublicKeyHex = "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a"

	testPath = "/v1/accounts/test-account/licenses/actions/validate-key"
	testHost = "api.keygen.sh"
)

func testPrivateKey() ed25519.PrivateKey {
	seed, err := hex.DecodeString(testSeedHex)
	if err != nil {
		panic(err)
	}
	return ed25519.NewKeyFromSeed(seed)
}

// fakeClock is a settable time source.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// signResponse builds a fully signed response the way the provider would:
// Date in HTTP format, Digest over the body, and a Keygen-Signature over
// the canonical signing string.
func signResponse(priv ed25519.PrivateKey, path, host string, date time.Time, body []byte) *CapturedResponse {
	dateHeader := date.UTC().Format(http.TimeFormat)
	digestHeader := formatDigestHeader(body)
	signingString := buildSigningString("post", path, host, dateHeader, digestHeader)
	sig := ed25519.Sign(priv, []byte(signingString))

	return &CapturedResponse{
		Status: 200,
		Date:   dateHeader,
		Signature: fmt.Sprintf(
			`keyid="test-key", algorithm="ed25519", signature="%s", headers="(request-target) host date digest"`,
			base64.StdEncoding.EncodeToString(sig)),
		Digest:      digestHeader,
		Body:        body,
		RequestPath: path,
		Host:        host,
	}
}

// signedHeader signs an arbitrary signing string and wraps it in a
// Keygen-Signature header value.
func signedHeader(priv ed25519.PrivateKey, signingString string) string {
	sig := ed25519.Sign(priv, []byte(signingString))
	return fmt.Sprintf(`keyid="test-key", algorithm="ed25519", signature="%s", headers="(request-target) host date"`,
		base64.StdEncoding.EncodeToString(sig))
}

// validBody returns a provider body for a valid license carrying the given
// entitlement codes.
func validBody(entitlements ...string) []byte {
	codes := ""
	for i, e := range entitlements {
		if i > 0 {
			codes += ","
		}
		codes += fmt.Sprintf("%q", e)
	}
	return []byte(fmt.Sprintf(
		`{"meta":{"valid":true,"code":"VALID","detail":"is valid","scope":{"entitlements":[%s]}},`+
			`"data":{"id":"lic-1","type":"licenses","attributes":{"name":"Test License","expiry":"2027-01-01T00:00:00Z","maxUses":0,"uses":0,"maxMachines":0}}}`,
		codes))
}

// invalidBody returns a provider body for an invalid license.
func invalidBody(code, detail string) []byte {
	return []byte(fmt.Sprintf(`{"meta":{"valid":false,"code":%q,"detail":%q}}`, code, detail))
}
