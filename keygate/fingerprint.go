package keygate

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
)

// fingerprintEnv overrides fingerprint derivation, for containers and CI
// where hardware identity is meaningless.
const fingerprintEnv = "KEYGATE_FINGERPRINT"

// Fingerprint derives a stable machine identifier for seat binding. The
// identity sources are hashed, never sent raw: hostname, machine-id when
// the platform provides one, the sorted set of physical MAC addresses,
// and OS/arch. Missing sources degrade gracefully; the fingerprint is
// stable as long as the remaining sources are.
func Fingerprint() string {
	if v := os.Getenv(fingerprintEnv); v != "" {
		return v
	}

	var parts []string

	if hostname, err := os.Hostname(); err == nil {
		parts = append(parts, hostname)
	}
	if id, err := os.ReadFile("/etc/machine-id"); err == nil {
		parts = append(parts, strings.TrimSpace(string(id)))
	}
	parts = append(parts, macAddresses()...)
	parts = append(parts, runtime.GOOS+"/"+runtime.GOARCH)

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// macAddresses returns the sorted MAC addresses of physical interfaces.
// Loopback and virtual interfaces without a hardware address are skipped.
func macAddresses() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var macs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" {
			macs = append(macs, mac)
		}
	}
	sort.Strings(macs)
	return macs
}
