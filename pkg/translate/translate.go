// Package translate orchestrates the translation pipeline and assembles the
// final type graph: preprocess the documents, derive types, build resolvers,
// group authenticated fields into viewers and merge everything into the
// Query/Mutation/Subscription roots.
package translate

import (
	"context"
	"errors"

	"github.com/getkin/kin-openapi/openapi3"
	log "github.com/jensneuse/abstractlogger"

	"github.com/oasgraph/oasgraph/pkg/derive"
	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/pubsub"
	"github.com/oasgraph/oasgraph/pkg/resolve"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
	"github.com/oasgraph/oasgraph/pkg/viewer"
)

// Translate turns one or more validated OpenAPI documents into a type graph.
// Recoverable conditions land on the returned report; the error is non-nil
// only for fatal conditions (explicit field-name override collisions) or, in
// strict mode, when the report carries any warning.
func Translate(documents []*openapi3.T, opts Options) (*graph.Schema, *translationreport.Report, error) {
	report := opts.Report
	if report == nil {
		report = &translationreport.Report{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NoopLogger
	}

	pre, err := preprocess.Documents(documents, &preprocess.Config{
		CreateSubscriptionsFromCallbacks: opts.CreateSubscriptionsFromCallbacks,
		CustomResolvers:                  opts.CustomResolvers,
		CustomSubscriptionResolvers:      opts.CustomSubscriptionResolvers,
		Logger:                           logger,
	}, report)
	if err != nil {
		return nil, report, err
	}

	schema := graph.NewSchema()
	registry := sanitize.NewNameRegistry(logger)
	deriver := derive.NewDeriver(schema, registry, derive.Config{
		SimpleNames:      opts.SimpleNames,
		SimpleEnumValues: opts.SimpleEnumValues,
		IDFormats:        opts.IDFormats,
	}, logger)

	source := opts.PubSub
	if source == nil {
		source = pubsub.NewBroker()
	}

	resolvers := resolve.NewBuilder(registry, pre.SecuritySchemes, resolve.Config{
		BaseURL:               opts.BaseURL,
		Headers:               opts.Headers,
		QueryParams:           opts.QueryParams,
		GenericPayloadArgName: opts.GenericPayloadArgName,
		SendOAuthTokenInQuery: opts.SendOAuthTokenInQuery,
		AddLimitArgument:      opts.AddLimitArgument,
		SimpleNames:           opts.SimpleNames,
		Client:                opts.Client,
		Logger:                logger,
	})

	a := &assembler{
		opts:      opts,
		schema:    schema,
		registry:  registry,
		deriver:   deriver,
		resolvers: resolvers,
		viewers:   viewer.NewBuilder(schema, pre.SecuritySchemes, report, logger),
		report:    report,
		log:       logger,
		source:    source,
	}
	if err := a.run(pre); err != nil {
		return nil, report, err
	}

	if opts.Strict && report.HasWarnings() {
		return nil, report, errors.New(report.Error())
	}
	return schema, report, nil
}

// ParseDocument loads and validates a single OpenAPI document from raw bytes.
func ParseDocument(ctx context.Context, input []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true
	document, err := loader.LoadFromData(input)
	if err != nil {
		return nil, err
	}
	if err := document.Validate(ctx); err != nil {
		return nil, err
	}
	return document, nil
}
