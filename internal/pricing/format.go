package pricing

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

var serviceNames = map[ServiceType]string{
	Regular: "Regular Cleaning",
	Deep:    "Deep Cleaning",
	Move:    "Move In/Out Cleaning",
}

// ServiceName returns the display label for a tier, or the raw value for
// tiers it does not know.
func ServiceName(tier string) string {
	if name, ok := serviceNames[ServiceType(tier)]; ok {
		return name
	}
	return tier
}

// FormatRange renders an estimate as "$1,210 – $1,430".
func FormatRange(est PriceEstimate) string {
	return fmt.Sprintf("$%s – $%s", humanize.Comma(int64(est.Low)), humanize.Comma(int64(est.High)))
}

// Describe renders the summary line shown under the price,
// e.g. "3 bed / 2 bath Deep Cleaning (~6 hours)".
func Describe(bedrooms, bathrooms int, est PriceEstimate) string {
	return fmt.Sprintf("%d bed / %d bath %s (~%d hours)", bedrooms, bathrooms, ServiceName(est.ServiceType), est.Hours)
}
