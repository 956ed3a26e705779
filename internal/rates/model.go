package rates

import (
	"time"

	"github.com/bher20/utilityrates/internal/openei"
)

// Lookup is the user input for a rate query. Values are passed through to
// OpenEI as entered.
type Lookup struct {
	Address         string `json:"address"`
	Consumption     string `json:"consumption"`
	PercentageScale string `json:"percentage_scale"`
}

// Params returns the caller parameters for the lookup.
func (l Lookup) Params() openei.Params {
	return openei.Params{
		"address":          l.Address,
		"consumption":      l.Consumption,
		"percentage_scale": l.PercentageScale,
	}
}

// LookupResponse is what the API and UI render for one lookup.
type LookupResponse struct {
	Query     map[string]string `json:"query"`
	Cached    bool              `json:"cached"`
	FetchedAt time.Time         `json:"fetched_at"`
	Result    *openei.Result    `json:"result"`
	Estimate  *Estimate         `json:"estimate,omitempty"`
}

// Estimate is a monthly bill estimate derived from the first rate item that
// carries a flat energy rate.
type Estimate struct {
	Utility         string  `json:"utility"`
	RateName        string  `json:"rate_name"`
	ConsumptionKWh  float64 `json:"consumption_kwh"`
	PercentageScale float64 `json:"percentage_scale"`
	EnergyRateUSD   float64 `json:"energy_rate_usd_per_kwh"`
	FixedChargeUSD  float64 `json:"fixed_charge_usd"`
	EnergyCostUSD   float64 `json:"energy_cost_usd"`
	TotalUSD        float64 `json:"total_usd"`
}
