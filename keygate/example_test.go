package keygate_test

import (
	"context"
	"fmt"
	"time"

	"github.com/keygate-io/keygate-sdk/keygate"
)

func ExampleNewManager() {
	manager, err := keygate.NewManager(keygate.Config{
		AppName:              "myapp",
		Product:              "pro",
		AccountID:            "your-keygen-account-id",
		PublicKeyHex:         "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a",
		RequiredEntitlements: []string{"PRO"},
		UserAgentProduct:     "myapp-pro",
		CacheNamespace:       "myapp-pro",
		OfflineGrace:         24 * time.Hour,
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	result, err := manager.ValidateKey(context.Background(), "MYAPP-XXXX-YYYY-ZZZZ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if !result.Decision.Allowed {
		fmt.Printf("Denied: %v\n", result.Decision.Reason)
		return
	}
	fmt.Printf("Licensed (from cache: %v)\n", result.FromCache)
}

func ExampleManager_RecordUsage() {
	manager, err := keygate.NewManager(keygate.Config{
		AppName:        "myapp",
		Product:        "pro",
		AccountID:      "your-keygen-account-id",
		PublicKeyHex:   "d75a980182b10ab7d54bfed3c964073a0ee172f3daa62325af021a68f707511a",
		CacheNamespace: "myapp-pro",
		OfflineGrace:   24 * time.Hour,
	}, keygate.WithUsageCap(keygate.UsageCap{
		Period: keygate.PeriodDaily,
		Limit:  100,
	}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	if err := manager.RecordUsage(); err != nil {
		fmt.Printf("Over cap: %v\n", err)
		return
	}
	stats := manager.Usage()
	fmt.Printf("Used today: %d\n", stats.DailyCount)
}

func ExampleFingerprint() {
	fp := keygate.Fingerprint()
	fmt.Printf("Fingerprint length: %d\n", len(fp))
	// Output: Fingerprint length: 64
}
