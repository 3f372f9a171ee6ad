package sanitize

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var legalIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func TestSanitize(t *testing.T) {
	cases := []struct {
		raw      string
		style    CaseStyle
		expected string
	}{
		{"user-name", CaseCamel, "userName"},
		{"user-name", CasePascal, "UserName"},
		{"user-name", CaseAllCaps, "USER_NAME"},
		{"user_name", CaseSimple, "user_name"},
		{"User Name!", CaseSimple, "UserName"},
		{"application/json", CaseCamel, "applicationJson"},
		{"3d-model", CasePascal, "_3DModel"},
		{"", CaseCamel, "_"},
		{"$ref", CaseCamel, "ref"},
		{"X-API-Key", CaseAllCaps, "X_API_KEY"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, Sanitize(tc.raw, tc.style))
		})
	}
}

func TestSanitizeProducesLegalIdentifiers(t *testing.T) {
	inputs := []string{
		"user-name", "3d model", "", "!!!", "foo.bar.baz", "ölmüş",
		"with spaces and 123", "{braces}", "a/b/c", "9",
	}
	for _, raw := range inputs {
		for _, style := range []CaseStyle{CaseSimple, CasePascal, CaseCamel, CaseAllCaps} {
			sane := Sanitize(raw, style)
			assert.Regexp(t, legalIdentifier, sane, "raw: %q style: %d", raw, style)
			if style == CaseAllCaps {
				assert.NotRegexp(t, regexp.MustCompile(`[a-z]`), sane)
			}
		}
	}
}

func TestNameRegistryRoundTrip(t *testing.T) {
	registry := NewNameRegistry(nil)
	raws := []string{"user-name", "X-API-Key", "application/json"}
	for _, raw := range raws {
		sane := registry.SaneFor(raw, CaseCamel)
		original, ok := registry.Original(sane)
		require.True(t, ok)
		assert.Equal(t, raw, original)
	}
}

func TestNameRegistryLastWriteWins(t *testing.T) {
	registry := NewNameRegistry(nil)
	registry.Store("userName", "user-name")
	registry.Store("userName", "user-name") // idempotent
	assert.Equal(t, 1, registry.Len())

	registry.Store("userName", "user_name")
	original, ok := registry.Original("userName")
	require.True(t, ok)
	assert.Equal(t, "user_name", original)
}

func TestInferResourceNameFromPath(t *testing.T) {
	cases := []struct {
		path     string
		expected string
	}{
		{"/v1/users/{userId}/car", "userCar"},
		{"/v1/users/{userId}/cars/{carId}", "userCar"},
		{"/api/products", "products"},
		{"/v2/stores/{store}/orders", "storeOrders"},
		{"/users", "users"},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, InferResourceNameFromPath(tc.path))
		})
	}
}

func TestSingularize(t *testing.T) {
	assert.Equal(t, "user", Singularize("users"))
	assert.Equal(t, "company", Singularize("companies"))
	assert.Equal(t, "address", Singularize("address"))
	assert.Equal(t, "car", Singularize("car"))
}
