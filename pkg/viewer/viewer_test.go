package viewer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/translationreport"
)

func testSchemes() map[string]*preprocess.SecurityScheme {
	return map[string]*preprocess.SecurityScheme{
		"api_key":    {Key: "api_key", Kind: preprocess.SecurityAPIKey, In: "header", ParamName: "X-API-Key"},
		"basic_auth": {Key: "basic_auth", Kind: preprocess.SecurityBasic},
	}
}

func noopField(name string) *graph.Field {
	return &graph.Field{
		Name: name,
		Type: graph.String,
		Resolve: func(graph.ResolveParams) (interface{}, error) {
			return nil, nil
		},
	}
}

func TestRootFieldsGroupsByRequirement(t *testing.T) {
	report := &translationreport.Report{}
	b := NewBuilder(graph.NewSchema(), testSchemes(), report, nil)

	apiKey := preprocess.SecurityRequirement{Key: "api_key", SchemeKeys: []string{"api_key"}}
	basic := preprocess.SecurityRequirement{Key: "basic_auth", SchemeKeys: []string{"basic_auth"}}

	require.NoError(t, b.Add(preprocess.KindQuery, apiKey, noopField("getUser"), false))
	require.NoError(t, b.Add(preprocess.KindQuery, basic, noopField("getAccount"), false))
	require.NoError(t, b.Add(preprocess.KindMutation, apiKey, noopField("createUser"), false))

	queryFields := b.RootFields(preprocess.KindQuery)
	require.Len(t, queryFields, 2)
	assert.Equal(t, "viewerApiKey", queryFields[0].Name)
	assert.Equal(t, "ViewerApiKey", queryFields[0].Type.Name)
	assert.Equal(t, "viewerBasicAuth", queryFields[1].Name)

	mutationFields := b.RootFields(preprocess.KindMutation)
	require.Len(t, mutationFields, 1)
	assert.Equal(t, "mutationViewerApiKey", mutationFields[0].Name)
	assert.Equal(t, "MutationViewerApiKey", mutationFields[0].Type.Name)

	assert.Equal(t, 3, report.NumAuthenticatedFields)
}

func TestCredentialArgs(t *testing.T) {
	b := NewBuilder(graph.NewSchema(), testSchemes(), &translationreport.Report{}, nil)

	basic := preprocess.SecurityRequirement{Key: "basic_auth", SchemeKeys: []string{"basic_auth"}}
	require.NoError(t, b.Add(preprocess.KindQuery, basic, noopField("getAccount"), false))

	fields := b.RootFields(preprocess.KindQuery)
	require.Len(t, fields, 1)
	require.Len(t, fields[0].Args, 2)
	assert.Equal(t, "username", fields[0].Args[0].Name)
	assert.Equal(t, "password", fields[0].Args[1].Name)
	assert.Equal(t, graph.NonNull, fields[0].Args[0].Type.Kind)
}

func TestCredentialArgsMultiScheme(t *testing.T) {
	b := NewBuilder(graph.NewSchema(), testSchemes(), &translationreport.Report{}, nil)

	combined := preprocess.SecurityRequirement{
		Key:        "api_key+basic_auth",
		SchemeKeys: []string{"api_key", "basic_auth"},
	}
	require.NoError(t, b.Add(preprocess.KindQuery, combined, noopField("getSecret"), false))

	fields := b.RootFields(preprocess.KindQuery)
	require.Len(t, fields, 1)
	assert.Equal(t, "ViewerApiKeyBasicAuth", fields[0].Type.Name)

	var argNames []string
	for _, arg := range fields[0].Args {
		argNames = append(argNames, arg.Name)
	}
	assert.Equal(t, []string{"apiKeyApiKey", "basicAuthUsername", "basicAuthPassword"}, argNames)
}

func TestCredentialResolverCapturesArgs(t *testing.T) {
	b := NewBuilder(graph.NewSchema(), testSchemes(), &translationreport.Report{}, nil)

	basic := preprocess.SecurityRequirement{Key: "basic_auth", SchemeKeys: []string{"basic_auth"}}
	require.NoError(t, b.Add(preprocess.KindQuery, basic, noopField("getAccount"), false))

	fields := b.RootFields(preprocess.KindQuery)
	require.Len(t, fields, 1)

	result, err := fields[0].Resolve(graph.ResolveParams{
		Ctx: context.Background(),
		Args: map[string]interface{}{
			"username": "ada",
			"password": "secret",
		},
	})
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	carrier := graph.CarrierFrom(m)
	require.NotNil(t, carrier)
	assert.Equal(t, "ada", carrier.Credentials["basic_auth"]["username"])
	assert.Equal(t, "secret", carrier.Credentials["basic_auth"]["password"])

	_, err = fields[0].Resolve(graph.ResolveParams{
		Ctx:  context.Background(),
		Args: map[string]interface{}{"username": "ada"},
	})
	require.Error(t, err)
}

func TestAddDropsDuplicateField(t *testing.T) {
	report := &translationreport.Report{}
	b := NewBuilder(graph.NewSchema(), testSchemes(), report, nil)

	apiKey := preprocess.SecurityRequirement{Key: "api_key", SchemeKeys: []string{"api_key"}}
	require.NoError(t, b.Add(preprocess.KindQuery, apiKey, noopField("getUser"), false))
	require.NoError(t, b.Add(preprocess.KindQuery, apiKey, noopField("getUser"), false))

	fields := b.RootFields(preprocess.KindQuery)
	require.Len(t, fields, 1)
	assert.Len(t, fields[0].Type.Fields, 1)

	var found bool
	for _, warning := range report.Warnings {
		if warning.Kind == translationreport.MitigationDuplicateSecurityField {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, 1, report.NumAuthenticatedFields)
}

func TestAddExplicitNameCollisionIsFatal(t *testing.T) {
	report := &translationreport.Report{}
	b := NewBuilder(graph.NewSchema(), testSchemes(), report, nil)

	apiKey := preprocess.SecurityRequirement{Key: "api_key", SchemeKeys: []string{"api_key"}}
	require.NoError(t, b.Add(preprocess.KindQuery, apiKey, noopField("widgets"), true))

	err := b.Add(preprocess.KindQuery, apiKey, noopField("widgets"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "widgets")
	assert.Equal(t, 1, report.NumAuthenticatedFields)
}
