package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteSetNormalization(t *testing.T) {
	set := NewRouteSet([2]string{"POST", "/api/v1/api-keys"})

	assert.True(t, set.Contains("POST", "/api/v1/api-keys"))
	assert.True(t, set.Contains("post", "/api/v1/api-keys/"))
	assert.False(t, set.Contains("GET", "/api/v1/api-keys"))
	assert.False(t, set.Contains("POST", "/api/v1/payments"))
}

func TestRouteSetRootPathKeepsSlash(t *testing.T) {
	set := NewRouteSet([2]string{"GET", "/"})
	assert.True(t, set.Contains("GET", "/"))
}

func TestIsAuthBypassMethod(t *testing.T) {
	assert.True(t, IsAuthBypassMethod("OPTIONS"))
	assert.True(t, IsAuthBypassMethod("options"))
	assert.False(t, IsAuthBypassMethod("GET"))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, TierGrowth, ParseTier("growth"))
	assert.Equal(t, TierGrowth, ParseTier("GROWTH"))
	assert.Equal(t, TierStarter, ParseTier("platinum"))
	assert.Equal(t, TierStarter, ParseTier(""))
}
