package config

import (
	"os"
	"strings"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictMenuEffectiveDate rejects attendance selections whose menu is not yet
// effective on the attendance date. Disable to accept any resolvable menu id.
//
// Set via env:
// - STRICT_MENU_EFFECTIVE_DATE=false
func StrictMenuEffectiveDate() bool {
	return envBool("STRICT_MENU_EFFECTIVE_DATE", true)
}

// OutboxDispatcherEnabled starts the bill event dispatcher in the API process.
//
// Set via env:
// - OUTBOX_DISPATCHER_ENABLED=true
func OutboxDispatcherEnabled() bool {
	return envBool("OUTBOX_DISPATCHER_ENABLED", false)
}

func RateLimitEnabled() bool {
	return envBool("RATE_LIMIT_ENABLED", false)
}

func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS", false)
}

func SeedOnStart() bool {
	return envBool("SEED_ON_START", false)
}

// PhoneRegion is the default region used when a phone number has no
// international prefix.
func PhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("PHONE_REGION")))
	if v == "" {
		return "PK"
	}
	return v
}
