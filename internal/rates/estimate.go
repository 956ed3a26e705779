package rates

import (
	"math"
	"strconv"
	"strings"

	"github.com/bher20/utilityrates/internal/openei"
)

// EstimateBill computes fixed charge + kWh × rate × (1 + scale/100) for the
// first item with a flat energy rate. It returns nil when consumption is not
// a number or no item has a rate. A non-numeric scale counts as zero.
func EstimateBill(items []openei.RateItem, consumption, percentageScale string) *Estimate {
	kwh, ok := parseNumber(consumption)
	if !ok {
		return nil
	}
	scale, _ := parseNumber(percentageScale)

	for _, item := range items {
		rate, ok := item.FlatEnergyRate()
		if !ok {
			continue
		}
		energy := kwh * rate * (1 + scale/100)
		return &Estimate{
			Utility:         item.Utility,
			RateName:        item.Name,
			ConsumptionKWh:  kwh,
			PercentageScale: scale,
			EnergyRateUSD:   rate,
			FixedChargeUSD:  item.FixedChargeFirstMeter,
			EnergyCostUSD:   roundCents(energy),
			TotalUSD:        roundCents(item.FixedChargeFirstMeter + energy),
		}
	}
	return nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
