package resolve

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/pubsub"
	"github.com/oasgraph/oasgraph/pkg/sanitize"
)

func newBuilder(cfg Config, schemes map[string]*preprocess.SecurityScheme) *Builder {
	return NewBuilder(sanitize.NewNameRegistry(nil), schemes, cfg)
}

func params(args map[string]interface{}) graph.ResolveParams {
	return graph.ResolveParams{Ctx: context.Background(), Args: args}
}

func TestResolverBuildsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/42", r.URL.Path)
		assert.Equal(t, "fast", r.URL.Query().Get("filter"))
		assert.Equal(t, "trace-1", r.Header.Get("X-Request-Id"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"42","first-name":"Ada"}`))
	}))
	defer server.Close()

	b := newBuilder(Config{BaseURL: server.URL}, nil)
	op := &preprocess.Operation{
		Method: http.MethodGet,
		Path:   "/users/{userId}",
		Parameters: []*preprocess.Parameter{
			{Name: "userId", In: "path", Required: true},
			{Name: "filter", In: "query"},
			{Name: "X-Request-Id", In: "header"},
		},
	}

	result, err := b.Resolver(op, "")(params(map[string]interface{}{
		"userId":     "42",
		"filter":     "fast",
		"xRequestId": "trace-1",
	}))
	require.NoError(t, err)

	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "42", m["id"])
	assert.Equal(t, "Ada", m["firstName"])

	carrier := graph.CarrierFrom(m)
	require.NotNil(t, carrier)
	assert.Equal(t, http.StatusOK, carrier.StatusCode)
	assert.Equal(t, server.URL+"/users/42", carrier.URL)
}

func TestResolverMissingRequiredPathParameter(t *testing.T) {
	b := newBuilder(Config{BaseURL: "http://example.com"}, nil)
	op := &preprocess.Operation{
		Method: http.MethodGet,
		Path:   "/users/{userId}",
		Parameters: []*preprocess.Parameter{
			{Name: "userId", In: "path", Required: true},
		},
	}

	_, err := b.Resolver(op, "")(params(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "userId")
}

func TestResolverDesanitizesPayload(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	registry := sanitize.NewNameRegistry(nil)
	registry.Store("firstName", "first-name")
	b := NewBuilder(registry, nil, Config{BaseURL: server.URL})

	op := &preprocess.Operation{
		Method:          http.MethodPost,
		Path:            "/users",
		PayloadRequired: true,
	}

	_, err := b.Resolver(op, "newUser")(params(map[string]interface{}{
		"newUser": map[string]interface{}{"firstName": "Ada"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "Ada", received["first-name"])
}

func TestResolverMissingRequiredPayload(t *testing.T) {
	b := newBuilder(Config{BaseURL: "http://example.com"}, nil)
	op := &preprocess.Operation{
		Method:          http.MethodPost,
		Path:            "/users",
		PayloadRequired: true,
	}

	_, err := b.Resolver(op, "newUser")(params(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newUser")
}

func TestResolverAppliesBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ada", username)
		assert.Equal(t, "secret", password)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	schemes := map[string]*preprocess.SecurityScheme{
		"basic_auth": {Key: "basic_auth", Kind: preprocess.SecurityBasic},
	}
	b := newBuilder(Config{BaseURL: server.URL}, schemes)

	op := &preprocess.Operation{
		Method: http.MethodGet,
		Path:   "/secure",
		SecurityRequirements: []preprocess.SecurityRequirement{
			{Key: "basic_auth", SchemeKeys: []string{"basic_auth"}},
		},
	}

	source := graph.AttachCarrier(nil, &graph.Carrier{
		Credentials: map[string]map[string]interface{}{
			"basic_auth": {"username": "ada", "password": "secret"},
		},
	})

	_, err := b.Resolver(op, "")(graph.ResolveParams{Ctx: context.Background(), Source: source})
	require.NoError(t, err)
}

func TestResolverAppliesAPIKeyInQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k-123", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	schemes := map[string]*preprocess.SecurityScheme{
		"api_key": {Key: "api_key", Kind: preprocess.SecurityAPIKey, In: "query", ParamName: "api_key"},
	}
	b := newBuilder(Config{BaseURL: server.URL}, schemes)

	op := &preprocess.Operation{
		Method: http.MethodGet,
		Path:   "/secure",
		SecurityRequirements: []preprocess.SecurityRequirement{
			{Key: "api_key", SchemeKeys: []string{"api_key"}},
		},
	}

	source := graph.AttachCarrier(nil, &graph.Carrier{
		Credentials: map[string]map[string]interface{}{
			"api_key": {"apiKey": "k-123"},
		},
	})

	_, err := b.Resolver(op, "")(graph.ResolveParams{Ctx: context.Background(), Source: source})
	require.NoError(t, err)
}

func TestResolverSendsOAuthToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	b := newBuilder(Config{BaseURL: server.URL}, nil)
	op := &preprocess.Operation{Method: http.MethodGet, Path: "/secure"}

	source := graph.AttachCarrier(nil, &graph.Carrier{OAuthToken: "tok"})
	_, err := b.Resolver(op, "")(graph.ResolveParams{Ctx: context.Background(), Source: source})
	require.NoError(t, err)
}

func TestResolverLimitsLists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1"},{"id":"2"},{"id":"3"}]`))
	}))
	defer server.Close()

	b := newBuilder(Config{BaseURL: server.URL, AddLimitArgument: true}, nil)
	op := &preprocess.Operation{Method: http.MethodGet, Path: "/users"}

	result, err := b.Resolver(op, "")(params(map[string]interface{}{"limit": 2}))
	require.NoError(t, err)
	list, ok := result.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 2)

	_, err = b.Resolver(op, "")(params(map[string]interface{}{"limit": -1}))
	require.Error(t, err)
}

func TestResolverErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	b := newBuilder(Config{BaseURL: server.URL}, nil)
	op := &preprocess.Operation{Method: http.MethodGet, Path: "/missing"}

	_, err := b.Resolver(op, "")(params(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestResolverServerPriority(t *testing.T) {
	b := newBuilder(Config{}, nil)

	op := &preprocess.Operation{
		Method:          http.MethodGet,
		Path:            "/things",
		Servers:         []*openapi3.Server{{URL: "http://op.example.com"}},
		DocumentServers: []*openapi3.Server{{URL: "http://doc.example.com"}},
	}

	url, err := b.endpointURL(op, &graph.Carrier{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://op.example.com/things", url)

	url, err = b.endpointURL(op, &graph.Carrier{BaseURL: "http://override.example.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://override.example.com/things", url)

	op.Servers = nil
	url, err = b.endpointURL(op, &graph.Carrier{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://doc.example.com/things", url)
}

func TestEvaluate(t *testing.T) {
	carrier := &graph.Carrier{
		Method:      http.MethodGet,
		URL:         "http://example.com/users/42?verbose=true",
		StatusCode:  200,
		RequestBody: []byte(`{"name":"Ada"}`),
		Response:    []byte(`{"id":"42","tags":["a","b"]}`),
		Args:        map[string]interface{}{"userId": "42"},
	}

	cases := []struct {
		expr string
		want interface{}
	}{
		{"$url", "http://example.com/users/42?verbose=true"},
		{"$method", http.MethodGet},
		{"$statusCode", "200"},
		{"$request.body#/name", "Ada"},
		{"$request.query.verbose", "true"},
		{"$request.path.userId", "42"},
		{"$response.body#/id", "42"},
		{"$response.body#/tags/1", "b"},
		{"literal", "literal"},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.expr, carrier)
		require.NoError(t, err, tc.expr)
		assert.Equal(t, tc.want, got, tc.expr)
	}

	_, err := Evaluate("$response.body#/missing", carrier)
	require.Error(t, err)
	_, err = Evaluate("$bogus", carrier)
	require.Error(t, err)

	interpolated, err := Evaluate("user-{$response.body#/id}", carrier)
	require.NoError(t, err)
	assert.Equal(t, "user-42", interpolated)
}

func TestLinkResolver(t *testing.T) {
	b := newBuilder(Config{}, nil)

	parent := graph.AttachCarrier(map[string]interface{}{"id": "42"}, &graph.Carrier{
		Response: []byte(`{"id":"42"}`),
	})

	var captured map[string]interface{}
	target := graph.ResolveFunc(func(p graph.ResolveParams) (interface{}, error) {
		captured = p.Args
		return nil, nil
	})

	link := &preprocess.Link{
		Name:        "cars",
		OperationID: "listUserCars",
		Parameters: map[string]interface{}{
			"userId": "$response.body#/id",
		},
	}

	_, err := b.LinkResolver(link, target)(graph.ResolveParams{
		Ctx:    context.Background(),
		Source: parent,
		Args:   map[string]interface{}{"model": "coupe"},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", captured["userId"])
	assert.Equal(t, "coupe", captured["model"])
}

func TestSubscriberReceivesPublishedMessages(t *testing.T) {
	broker := pubsub.NewBroker()
	defer broker.Close()

	b := newBuilder(Config{}, nil)
	op := &preprocess.Operation{
		Method:          http.MethodPost,
		Path:            "/users",
		OperationID:     "onUserEvent",
		Kind:            preprocess.KindSubscription,
		FromCallback:    true,
		TopicExpression: "{$request.body#/callbackUrl}",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := b.Subscriber(op, broker)(graph.ResolveParams{
		Ctx: ctx,
		Args: map[string]interface{}{
			"callbackUrl": "events/users",
		},
	})
	require.NoError(t, err)

	require.NoError(t, broker.Publish(context.Background(), "events/users", []byte(`{"event-kind":"created"}`)))

	select {
	case data := <-messages:
		resolved, err := b.MessageResolver(op)(graph.ResolveParams{Ctx: ctx, Source: data})
		require.NoError(t, err)
		m, ok := resolved.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "created", m["eventKind"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestTopicResolution(t *testing.T) {
	b := newBuilder(Config{}, nil)

	op := &preprocess.Operation{
		Method: http.MethodGet,
		Path:   "/devices/{deviceId}/events",
	}
	topic, err := b.topic(op, map[string]interface{}{"deviceId": "d-1"})
	require.NoError(t, err)
	assert.Equal(t, "/devices/d-1/events", topic)

	op.TopicExpression = "{$request.query.channel}"
	topic, err = b.topic(op, map[string]interface{}{"channel": "news"})
	require.NoError(t, err)
	assert.Equal(t, "news", topic)

	_, err = b.topic(op, nil)
	require.Error(t, err)
}
