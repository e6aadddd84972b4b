// Package keygate provides hardened client-side license validation against
// the Keygen.sh validate-key API.
//
// Install with:
//
//	go get github.com/keygate-io/keygate-sdk/keygate
//
// Every provider response is treated as an adversarial artifact: access is
// granted only after the Ed25519 response signature, the SHA-256 body digest,
// and the response freshness window have all been checked. Verified responses
// are persisted to an authenticated offline cache that re-runs the same
// cryptographic checks on every read, so a tampered cache file is rejected
// just like a tampered network response.
//
// # Quick Start
//
//	manager, err := keygate.NewManager(keygate.Config{
//	    AppName:              "myapp",
//	    Product:              "pro",
//	    AccountID:            "your-keygen-account-id",
//	    PublicKeyHex:         "your-keygen-ed25519-verify-key-hex",
//	    RequiredEntitlements: []string{"PRO"},
//	    UserAgentProduct:     "myapp-pro",
//	    CacheNamespace:       "myapp-pro",
//	    OfflineGrace:         24 * time.Hour,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := manager.ValidateKey(ctx, licenseKey)
//
// # Threat Model
//
// keygate protects against spoofed validation responses (MITM), replayed
// stale responses, and offline cache tampering. It does not defend against
// a fully compromised host: binary patching or runtime memory tampering can
// always bypass client-side licensing.
package keygate
