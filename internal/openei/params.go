package openei

import (
	"net/url"
	"sort"
)

// Params is a set of query parameters. Keys are unique; a later write to the
// same key replaces the earlier value.
type Params map[string]string

// Clone returns an independent copy of p. A nil Params clones to an empty,
// non-nil map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a new Params holding p overlaid with other. Values from other
// win on key collision. Neither input is modified.
func (p Params) Merge(other Params) Params {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Without returns a copy of p with the given keys removed.
func (p Params) Without(keys ...string) Params {
	out := p.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Values converts p to url.Values.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode renders p as a query string with keys sorted, so equal sets always
// encode the same way.
func (p Params) Encode() string {
	return p.Values().Encode()
}
