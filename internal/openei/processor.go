package openei

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fastjson"
)

// Result is the processed form of a Response.
type Result struct {
	URL        string          `json:"url"`
	StatusCode int             `json:"status_code"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Items      []RateItem      `json:"items,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// RateItem is one tariff from the utility_rates items array. Only the fields
// used for display and estimates are decoded.
type RateItem struct {
	Label                 string           `json:"label"`
	Utility               string           `json:"utility"`
	Name                  string           `json:"name"`
	Sector                string           `json:"sector,omitempty"`
	Description           string           `json:"description,omitempty"`
	Source                string           `json:"source,omitempty"`
	URI                   string           `json:"uri,omitempty"`
	StartDate             *time.Time       `json:"start_date,omitempty"`
	EndDate               *time.Time       `json:"end_date,omitempty"`
	FixedChargeFirstMeter float64          `json:"fixed_charge_first_meter"`
	FixedChargeUnits      string           `json:"fixed_charge_units,omitempty"`
	EnergyRateTiers       []EnergyRateTier `json:"energy_rate_tiers,omitempty"`
}

// EnergyRateTier is a single tier of the first energy rate period.
type EnergyRateTier struct {
	Max        *float64 `json:"max,omitempty"`
	Rate       float64  `json:"rate"`
	Adjustment float64  `json:"adjustment"`
	Unit       string   `json:"unit,omitempty"`
}

// FlatEnergyRate returns the first tier's rate plus adjustment, in $/kWh.
func (i RateItem) FlatEnergyRate() (float64, bool) {
	if len(i.EnergyRateTiers) == 0 {
		return 0, false
	}
	t := i.EnergyRateTiers[0]
	return t.Rate + t.Adjustment, true
}

// Processor turns a raw Response into a Result.
type Processor interface {
	Process(ctx context.Context, resp *Response) (*Result, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, resp *Response) (*Result, error)

func (f ProcessorFunc) Process(ctx context.Context, resp *Response) (*Result, error) {
	return f(ctx, resp)
}

// RawProcessor passes the body through untouched, regardless of status.
type RawProcessor struct{}

func (RawProcessor) Process(_ context.Context, resp *Response) (*Result, error) {
	return &Result{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		FetchedAt:  resp.FetchedAt,
		Raw:        rawJSON(resp.Body),
	}, nil
}

// RateItemsProcessor decodes the items array of a utility_rates JSON
// response. Non-2xx statuses and error envelopes become *APIError.
type RateItemsProcessor struct {
	// KeepRaw copies the full body into Result.Raw.
	KeepRaw bool
}

func (p RateItemsProcessor) Process(_ context.Context, resp *Response) (*Result, error) {
	var parser fastjson.Parser
	v, perr := parser.ParseBytes(resp.Body)

	if !resp.OK() {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if perr == nil {
			fillAPIError(apiErr, v.Get("error"))
		}
		return nil, apiErr
	}
	if perr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, perr)
	}
	if e := v.Get("error"); e != nil {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		fillAPIError(apiErr, e)
		return nil, apiErr
	}

	res := &Result{
		URL:        resp.URL,
		StatusCode: resp.StatusCode,
		FetchedAt:  resp.FetchedAt,
	}
	if p.KeepRaw {
		res.Raw = rawJSON(resp.Body)
	}

	items := v.Get("items")
	if items == nil {
		return res, nil
	}
	arr, err := items.Array()
	if err != nil {
		return nil, fmt.Errorf("%w: items: %v", ErrMalformedPayload, err)
	}
	res.Items = make([]RateItem, 0, len(arr))
	for _, it := range arr {
		res.Items = append(res.Items, decodeRateItem(it))
	}
	return res, nil
}

func decodeRateItem(v *fastjson.Value) RateItem {
	item := RateItem{
		Label:                 string(v.GetStringBytes("label")),
		Utility:               string(v.GetStringBytes("utility")),
		Name:                  string(v.GetStringBytes("name")),
		Sector:                string(v.GetStringBytes("sector")),
		Description:           string(v.GetStringBytes("description")),
		Source:                string(v.GetStringBytes("source")),
		URI:                   string(v.GetStringBytes("uri")),
		FixedChargeFirstMeter: v.GetFloat64("fixedchargefirstmeter"),
		FixedChargeUnits:      string(v.GetStringBytes("fixedchargeunits")),
		StartDate:             unixTime(v, "startdate"),
		EndDate:               unixTime(v, "enddate"),
	}

	periods := v.GetArray("energyratestructure")
	if len(periods) > 0 {
		for _, t := range periods[0].GetArray() {
			tier := EnergyRateTier{
				Rate:       t.GetFloat64("rate"),
				Adjustment: t.GetFloat64("adj"),
				Unit:       string(t.GetStringBytes("unit")),
			}
			if t.Exists("max") {
				m := t.GetFloat64("max")
				tier.Max = &m
			}
			item.EnergyRateTiers = append(item.EnergyRateTiers, tier)
		}
	}
	return item
}

func unixTime(v *fastjson.Value, key string) *time.Time {
	if !v.Exists(key) {
		return nil
	}
	sec := v.GetInt64(key)
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// fillAPIError reads either {"error":{"code":..,"message":..}} or
// {"error":"message"}.
func fillAPIError(dst *APIError, e *fastjson.Value) {
	if e == nil {
		return
	}
	switch e.Type() {
	case fastjson.TypeString:
		if b, err := e.StringBytes(); err == nil {
			dst.Message = string(b)
		}
	case fastjson.TypeObject:
		dst.Code = string(e.GetStringBytes("code"))
		dst.Message = string(e.GetStringBytes("message"))
	}
}

func rawJSON(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		out := make([]byte, len(body))
		copy(out, body)
		return out
	}
	quoted, _ := json.Marshal(string(body))
	return quoted
}
