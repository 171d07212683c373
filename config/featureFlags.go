package config

import (
	"os"
	"strconv"
	"strings"
)

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AllowNegativeStock relaxes the non-negative stock invariant for manual
// adjustments. Production and sale consumption still require feasibility.
//
// Set via env:
// - ALLOW_NEGATIVE_STOCK=true
func AllowNegativeStock() bool {
	return envBool("ALLOW_NEGATIVE_STOCK", false)
}

// FailedRunAudit controls whether a rejected or faulted production attempt
// leaves a Failed production run row behind for audit.
//
// Set via env:
// - FAILED_RUN_AUDIT=false (default on)
func FailedRunAudit() bool {
	return envBool("FAILED_RUN_AUDIT", true)
}

// AutoProductionMaxDepth bounds the automatic production cascade. A chain
// longer than this fails instead of recursing further.
//
// Set via env:
// - AUTO_PRODUCTION_MAX_DEPTH=5
func AutoProductionMaxDepth() int {
	v := strings.TrimSpace(os.Getenv("AUTO_PRODUCTION_MAX_DEPTH"))
	if v == "" {
		return 5
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 5
	}
	return n
}

// StockLockWaitMs bounds how long a stock-mutating operation waits on the
// per-business posting lock before failing as retryable.
//
// Set via env:
// - STOCK_LOCK_WAIT_MS=5000
func StockLockWaitMs() int {
	v := strings.TrimSpace(os.Getenv("STOCK_LOCK_WAIT_MS"))
	if v == "" {
		return 5000
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 5000
	}
	return n
}
