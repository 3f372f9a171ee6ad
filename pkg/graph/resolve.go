package graph

import (
	"context"
)

// ResolveParams is what the host execution engine hands to a field resolver:
// the parent value, the coerced field arguments and the request context.
type ResolveParams struct {
	Ctx    context.Context
	Source interface{}
	Args   map[string]interface{}
}

type ResolveFunc func(params ResolveParams) (interface{}, error)

// SubscribeFunc opens an event stream for a subscription field. The returned
// channel is closed when the context is done or the transport shuts down;
// each published payload is handed to the field's Resolve for reshaping.
type SubscribeFunc func(params ResolveParams) (<-chan []byte, error)

// CarrierField is the reserved key under which a resolver attaches its
// Carrier to the result object it returns.
const CarrierField = "_oasgraph"

// Carrier is the side channel resolvers use to pass translation metadata to
// nested and linked resolvers. It travels attached to the parent result,
// never through the ambient request context, so credential propagation stays
// explicit and cannot collide with unrelated context state.
type Carrier struct {
	// Credentials holds the credential arguments captured by a viewer
	// field, keyed by security scheme.
	Credentials map[string]map[string]interface{}

	// OAuthToken is an access token supplied by the caller, forwarded
	// verbatim to the upstream API.
	OAuthToken string

	// BaseURL overrides server resolution for follow-up calls.
	BaseURL string

	// Call metadata of the request that produced the parent result, used
	// to evaluate link runtime expressions.
	Method      string
	URL         string
	StatusCode  int
	RequestBody []byte
	Response    []byte
	Args        map[string]interface{}
}

// Child derives a carrier for a follow-up call, keeping the credential
// material and the base URL override but dropping the per-call metadata.
func (c *Carrier) Child() *Carrier {
	if c == nil {
		return &Carrier{}
	}
	return &Carrier{
		Credentials: c.Credentials,
		OAuthToken:  c.OAuthToken,
		BaseURL:     c.BaseURL,
	}
}

// AttachCarrier stores the carrier on a result object.
func AttachCarrier(result map[string]interface{}, c *Carrier) map[string]interface{} {
	if result == nil {
		result = make(map[string]interface{})
	}
	result[CarrierField] = c
	return result
}

// CarrierFrom extracts the carrier from a parent value, or nil.
func CarrierFrom(source interface{}) *Carrier {
	m, ok := source.(map[string]interface{})
	if !ok {
		return nil
	}
	c, _ := m[CarrierField].(*Carrier)
	return c
}
