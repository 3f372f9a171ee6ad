package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestInputEncoding(t *testing.T) {
	in := SetInputMethod(nil, []byte("GET"))
	assert.Equal(t, `{"method":"GET"}`, string(in))

	in = SetInputMethod(nil, []byte(`"POST"`))
	assert.Equal(t, `{"method":"POST"}`, string(in))

	in = SetInputURL(nil, []byte("foo.bar.com"))
	assert.Equal(t, `{"url":"foo.bar.com"}`, string(in))

	in = SetInputQueryParams(nil, []byte(`[{"name":"limit","value":"10"}]`))
	assert.Equal(t, `{"query_params":[{"name":"limit","value":"10"}]}`, string(in))

	in = SetInputHeaders(nil, []byte(`{"foo":"bar"}`))
	assert.Equal(t, `{"headers":{"foo":"bar"}}`, string(in))

	in = SetInputBody(nil, []byte(`{"foo":"bar"}`))
	assert.Equal(t, `{"body":{"foo":"bar"}}`, string(in))
}

func TestRequestInputParamsRoundTrip(t *testing.T) {
	in := SetInputURL(nil, []byte("http://example.com/users"))
	in = SetInputMethod(in, []byte("POST"))
	in = SetInputBody(in, []byte(`{"name":"Alice"}`))
	in = SetInputHeaders(in, []byte(`{"X-Api-Key":"secret"}`))
	in = SetInputQueryParams(in, []byte(`[{"name":"verbose","value":"true"}]`))

	url, method, body, headers, queryParams := requestInputParams(in)
	assert.Equal(t, "http://example.com/users", string(url))
	assert.Equal(t, "POST", string(method))
	assert.Equal(t, `{"name":"Alice"}`, string(body))
	assert.Equal(t, `{"X-Api-Key":"secret"}`, string(headers))
	assert.Equal(t, `[{"name":"verbose","value":"true"}]`, string(queryParams))
}

func TestDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["tag"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	in := SetInputURL(nil, []byte(server.URL+"/users"))
	in = SetInputMethod(in, []byte("POST"))
	in = SetInputBody(in, []byte(`{"name":"Alice"}`))
	in = SetInputHeaders(in, []byte(`{"X-Api-Key":"secret"}`))
	in = SetInputQueryParams(in, []byte(`[{"name":"limit","value":"10"},{"name":"tag","value":["a","b"]}]`))

	out := &bytes.Buffer{}
	statusCode, err := Do(http.DefaultClient, context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, statusCode)
	assert.Equal(t, `{"id":"1"}`, out.String())
}
