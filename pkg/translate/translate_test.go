package translate

import (
	"context"
	"os"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
)

func loadDocument(t *testing.T, path string) *openapi3.T {
	t.Helper()
	input, err := os.ReadFile(path)
	require.NoError(t, err)
	document, err := ParseDocument(context.Background(), input)
	require.NoError(t, err)
	return document
}

func fieldNames(typ *graph.Type) []string {
	names := make([]string, 0, len(typ.Fields))
	for _, field := range typ.Fields {
		names = append(names, field.Name)
	}
	return names
}

func findField(t *testing.T, typ *graph.Type, name string) *graph.Field {
	t.Helper()
	field := typ.Field(name)
	require.NotNil(t, field, "field %q not found on %s", name, typ.Name)
	return field
}

func petstoreOptions() Options {
	opts := DefaultOptions()
	opts.CreateSubscriptionsFromCallbacks = true
	return opts
}

func TestTranslatePetstore(t *testing.T) {
	doc := loadDocument(t, "testdata/petstore.json")

	schema, report, err := Translate([]*openapi3.T{doc}, petstoreOptions())
	require.NoError(t, err)

	require.NotNil(t, schema.Query)
	assert.Equal(t, []string{"car", "stats", "user"}, fieldNames(schema.Query))

	require.NotNil(t, schema.Mutation)
	assert.Equal(t, []string{"mutationViewerApiKey"}, fieldNames(schema.Mutation))

	require.NotNil(t, schema.Subscription)
	assert.Equal(t, []string{"onUserEvent"}, fieldNames(schema.Subscription))
	assert.NotNil(t, schema.Subscription.Fields[0].Subscribe)

	// The declared link shows up as a lazily-resolved field on the parent
	// response type, with the stitched argument removed.
	user, ok := schema.Type("User")
	require.True(t, ok)
	cars := findField(t, user, "cars")
	assert.True(t, cars.Type.IsList())
	require.Len(t, cars.Args, 1)
	assert.Equal(t, "model", cars.Args[0].Name)

	viewerType, ok := schema.Type("MutationViewerApiKey")
	require.True(t, ok)
	createUser := findField(t, viewerType, "createUser")
	require.Len(t, createUser.Args, 1)
	assert.Equal(t, "newUser", createUser.Args[0].Name)
	assert.Equal(t, graph.NonNull, createUser.Args[0].Type.Kind)

	assert.Equal(t, 3, report.NumQueryFields)
	assert.Equal(t, 0, report.NumMutationFields)
	assert.Equal(t, 1, report.NumSubscriptionFields)
	assert.Equal(t, 1, report.NumAuthenticatedFields)
}

func TestTranslateSDL(t *testing.T) {
	doc := loadDocument(t, "testdata/petstore.json")

	schema, _, err := Translate([]*openapi3.T{doc}, petstoreOptions())
	require.NoError(t, err)

	sdl := graph.PrintSchema(schema)
	goldie.Assert(t, "petstore", sdl)

	_, gqlErr := gqlparser.LoadSchema(&ast.Source{
		Name:  "petstore.graphql",
		Input: string(sdl),
	})
	require.NoError(t, gqlErr)
}

func TestTranslateDeterminism(t *testing.T) {
	first := graph.PrintSchema(mustTranslate(t, "testdata/petstore.json"))
	second := graph.PrintSchema(mustTranslate(t, "testdata/petstore.json"))
	assert.Empty(t, cmp.Diff(string(first), string(second)))
}

func mustTranslate(t *testing.T, path string) *graph.Schema {
	t.Helper()
	doc := loadDocument(t, path)
	schema, _, err := Translate([]*openapi3.T{doc}, petstoreOptions())
	require.NoError(t, err)
	return schema
}

func TestTranslateCollisionFallback(t *testing.T) {
	doc := loadDocument(t, "testdata/collision.json")

	schema, report, err := Translate([]*openapi3.T{doc}, DefaultOptions())
	require.NoError(t, err)

	// Both operations default to "user"; the second falls back to its
	// sanitized operation identifier, nothing is overwritten.
	assert.Equal(t, []string{"getUsersUserId", "user"}, fieldNames(schema.Query))

	var found bool
	for _, warning := range report.Warnings {
		if warning.Kind == translationreport.MitigationDuplicateField {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTranslateExplicitOverrideCollisionIsFatal(t *testing.T) {
	doc := loadDocument(t, "testdata/widgets.json")

	schema, _, err := Translate([]*openapi3.T{doc}, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, schema)
	assert.Contains(t, err.Error(), "widgets")
}

func TestTranslateViewerExplicitOverrideCollisionIsFatal(t *testing.T) {
	doc := loadDocument(t, "testdata/securewidgets.json")

	schema, _, err := Translate([]*openapi3.T{doc}, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, schema)
	assert.Contains(t, err.Error(), "widgets")
}

func TestTranslateDerivedTypeCannotShadowRoots(t *testing.T) {
	doc := loadDocument(t, "testdata/rootclash.json")

	schema, _, err := Translate([]*openapi3.T{doc}, DefaultOptions())
	require.NoError(t, err)

	// The response schema titled "Query" is renamed; the root keeps its
	// assembled fields.
	assert.Equal(t, []string{"status"}, fieldNames(schema.Query))
	registered, ok := schema.Type("Query")
	require.True(t, ok)
	assert.Same(t, schema.Query, registered)

	status := findField(t, schema.Query, "status")
	assert.Equal(t, "Status", status.Type.Unwrap().Name)
}

func TestTranslateStrictEscalatesWarnings(t *testing.T) {
	doc := loadDocument(t, "testdata/petstore.json")

	opts := petstoreOptions()
	opts.Strict = true
	schema, report, err := Translate([]*openapi3.T{doc}, opts)
	require.Error(t, err)
	assert.Nil(t, schema)
	assert.True(t, report.HasWarnings())
}

func TestTranslateCustomResolver(t *testing.T) {
	doc := loadDocument(t, "testdata/petstore.json")

	opts := petstoreOptions()
	opts.CustomResolvers = map[string]map[string]map[string]graph.ResolveFunc{
		"Pet Store": {
			"/users/{userId}": {
				"get": func(graph.ResolveParams) (interface{}, error) {
					return "custom", nil
				},
			},
		},
	}
	schema, _, err := Translate([]*openapi3.T{doc}, opts)
	require.NoError(t, err)

	user := findField(t, schema.Query, "user")
	result, err := user.Resolve(graph.ResolveParams{Ctx: context.Background()})
	require.NoError(t, err)
	assert.Equal(t, "custom", result)
}

func TestTranslateFillEmptyResponses(t *testing.T) {
	doc := loadDocument(t, "testdata/noresponse.json")

	schema, report, err := Translate([]*openapi3.T{doc}, DefaultOptions())
	require.NoError(t, err)
	// The operation is skipped; Query still exists with its dummy field.
	assert.Equal(t, []string{"_"}, fieldNames(schema.Query))

	var found bool
	for _, warning := range report.Warnings {
		if warning.Kind == translationreport.MitigationMissingResponseSchema {
			found = true
		}
	}
	assert.True(t, found)

	opts := DefaultOptions()
	opts.FillEmptyResponses = true
	schema, _, err = Translate([]*openapi3.T{loadDocument(t, "testdata/noresponse.json")}, opts)
	require.NoError(t, err)
	ping := findField(t, schema.Query, "pingPlaceholder")
	assert.Equal(t, "PingPlaceholder", ping.Type.Name)
}

func TestTranslateAddLimitArgument(t *testing.T) {
	doc := loadDocument(t, "testdata/petstore.json")

	opts := petstoreOptions()
	opts.AddLimitArgument = true
	schema, _, err := Translate([]*openapi3.T{doc}, opts)
	require.NoError(t, err)

	car := findField(t, schema.Query, "car")
	var limit *graph.InputValue
	for _, arg := range car.Args {
		if arg.Name == "limit" {
			limit = arg
		}
	}
	require.NotNil(t, limit)
	assert.Same(t, graph.Int, limit.Type)
}

func TestTranslateOperationIDFieldNames(t *testing.T) {
	doc := loadDocument(t, "testdata/petstore.json")

	opts := petstoreOptions()
	opts.OperationIDFieldNames = true
	schema, _, err := Translate([]*openapi3.T{doc}, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"getStats", "getUser", "listUserCars"}, fieldNames(schema.Query))
}
