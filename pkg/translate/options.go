package translate

import (
	"net/http"

	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/pubsub"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
)

// Options configures a translation run. The zero value is usable; call
// DefaultOptions for the defaults most callers want.
type Options struct {
	// Strict escalates accumulated warnings into a translation error.
	Strict bool

	// SimpleNames keeps generated identifiers as close to the source
	// vocabulary as legality allows instead of Pascal/camel casing them.
	SimpleNames bool

	// SimpleEnumValues skips the ALL_CAPS conversion of enum literals.
	SimpleEnumValues bool

	// SingularNames derives query field names from the URL path resource
	// instead of the response type name.
	SingularNames bool

	// OperationIDFieldNames forces operationId-based field names for every
	// kind, queries included.
	OperationIDFieldNames bool

	// FillEmptyResponses synthesizes a placeholder response type for
	// operations that declare none instead of skipping them.
	FillEmptyResponses bool

	// AddLimitArgument puts a limit argument on list-returning fields and
	// slices the result client-side.
	AddLimitArgument bool

	// IDFormats lists extra string formats treated as identifier scalars.
	IDFormats []string

	// GenericPayloadArgName exposes every request payload under the
	// argument name "requestBody" instead of the sanitized schema name.
	GenericPayloadArgName bool

	// CreateSubscriptionsFromCallbacks turns callback declarations into
	// subscription candidates.
	CreateSubscriptionsFromCallbacks bool

	// Viewer wraps authenticated operations into per-requirement viewer
	// namespaces. Disabled, every field lands on the plain roots and the
	// caller authenticates through static Headers.
	Viewer bool

	// SendOAuthTokenInQuery sends a caller-supplied token as the
	// access_token query parameter instead of an Authorization header.
	SendOAuthTokenInQuery bool

	// Transport defaults applied to every upstream call.
	Headers     map[string]string
	QueryParams map[string]string
	BaseURL     string

	// CustomResolvers replace generated resolvers for exact
	// document-title → path → method triples.
	CustomResolvers             map[string]map[string]map[string]graph.ResolveFunc
	CustomSubscriptionResolvers map[string]map[string]map[string]graph.SubscribeFunc

	// Report receives warnings and counters; a fresh one is allocated when
	// nil.
	Report *translationreport.Report

	Logger log.Logger
	Client *http.Client

	// PubSub is the event transport backing subscription fields. Defaults
	// to the in-process broker.
	PubSub pubsub.PubSub
}

// DefaultOptions returns the options most callers want: viewer namespaces on,
// everything else off.
func DefaultOptions() Options {
	return Options{Viewer: true}
}
