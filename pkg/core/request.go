package core

import (
	"net/url"
	"sort"
	"strings"
)

// PolicyKind selects which rate-limit bucket a request draws from.
type PolicyKind int

// Rate-limit policy kinds.
const (
	// PolicyPublic covers unauthenticated market-data endpoints.
	PolicyPublic PolicyKind = iota
	// PolicyPrivate covers authenticated account endpoints.
	PolicyPrivate
	// PolicyTrading covers order placement and cancellation.
	PolicyTrading
)

// String returns the string representation of the policy kind.
func (p PolicyKind) String() string {
	return [...]string{"PUBLIC", "PRIVATE", "TRADING"}[p]
}

// Venue selects which API surface a request targets.
type Venue int

// Venue constants.
const (
	// VenueSpot targets the Spot REST API.
	VenueSpot Venue = iota
	// VenueFutures targets the Futures REST API.
	VenueFutures
)

// String returns the string representation of the venue.
func (v Venue) String() string {
	return [...]string{"SPOT", "FUTURES"}[v]
}

// Params holds request parameters prior to encoding.
type Params map[string]string

// Encode returns the URL-encoded form of the parameters with keys sorted,
// so the encoding (and therefore the signature) is deterministic.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[k]))
	}
	return b.String()
}

// Request describes one venue call before signing and dispatch.
type Request struct {
	Method  string     `json:"method"`
	Path    string     `json:"path"`
	Params  Params     `json:"params,omitempty"`
	Venue   Venue      `json:"venue"`
	Policy  PolicyKind `json:"policy"`
	Cost    float64    `json:"cost"`
	Private bool       `json:"private"`
}

// NewRequest creates a public GET request with cost 1.
func NewRequest(method, path string) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Params: make(Params),
		Cost:   1,
	}
}

// SetParam sets one parameter and returns the request for chaining.
func (r *Request) SetParam(key, value string) *Request {
	if r.Params == nil {
		r.Params = make(Params)
	}
	r.Params[key] = value
	return r
}

// SetPrivate marks the request as requiring a signature under the given
// policy and returns the request for chaining.
func (r *Request) SetPrivate(policy PolicyKind) *Request {
	r.Private = true
	r.Policy = policy
	return r
}

// SetCost declares the request's rate-limit cost and returns the request.
func (r *Request) SetCost(cost float64) *Request {
	r.Cost = cost
	return r
}

// SetVenue targets the request at the given venue and returns the request.
func (r *Request) SetVenue(v Venue) *Request {
	r.Venue = v
	return r
}

// SignedRequest is a fully prepared private call. It is derived once from a
// Request, never mutated afterwards, and consumed once by the transport.
type SignedRequest struct {
	Method    string
	Path      string
	Body      string
	Nonce     uint64
	Signature string
	Headers   map[string]string
}
