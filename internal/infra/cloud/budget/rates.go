// Package budget tracks estimated upload spend against a shared monthly
// ceiling and answers cost questions for provider selection.
package budget

import (
	"github.com/shopspring/decimal"

	"github.com/vietddude/uplink/internal/core/domain"
)

// defaultRatesPerMB holds list-price transfer estimates per megabyte,
// keyed by platform. A provider's configured rate overrides its
// platform's default; adding a platform is a table edit, not a code
// branch.
var defaultRatesPerMB = map[domain.Platform]decimal.Decimal{
	domain.PlatformAWS:    decimal.NewFromFloat(0.023),
	domain.PlatformAzure:  decimal.NewFromFloat(0.020),
	domain.PlatformGCP:    decimal.NewFromFloat(0.026),
	domain.PlatformCustom: decimal.NewFromFloat(0.010),
}

// fallbackRatePerMB backs platforms missing from the table.
var fallbackRatePerMB = decimal.NewFromFloat(0.025)

// DefaultRate returns the per-MB rate for a platform.
func DefaultRate(p domain.Platform) decimal.Decimal {
	if r, ok := defaultRatesPerMB[p]; ok {
		return r
	}
	return fallbackRatePerMB
}
