package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "paygate/internal/auth/models"
	"paygate/internal/ratelimit/models"
	"paygate/internal/ratelimit/store/window"
)

func TestCheckRequestTierQuotas(t *testing.T) {
	store := window.NewMemory()
	svc, err := New(store)
	require.NoError(t, err)

	tests := []struct {
		name string
		tier authmodels.Tier
		want int
	}{
		{"growth tier gets 500", authmodels.TierGrowth, 500},
		{"scale tier gets 2000", authmodels.TierScale, 2000},
		{"admin tier gets 10000", authmodels.TierAdmin, 10000},
		{"public tier gets 60", authmodels.TierPublic, 60},
		{"unrecognized tier falls back to starter", authmodels.Tier("platinum"), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authCtx := &authmodels.AuthContext{TenantID: "tenant-" + string(tt.tier), Tier: tt.tier}
			info := svc.CheckRequest(context.Background(), authCtx, "")
			assert.Equal(t, tt.want, info.Limit)
			assert.Equal(t, tt.want-1, info.Remaining)
		})
	}
}

func TestIdentifierSelection(t *testing.T) {
	tenant := &authmodels.AuthContext{TenantID: "t1", Tier: authmodels.TierStarter}
	assert.Equal(t, "tenant:t1", models.Identifier(tenant, "198.51.100.2"))

	anonymous := &authmodels.AuthContext{Tier: authmodels.TierPublic}
	assert.Equal(t, "ip:198.51.100.2", models.Identifier(anonymous, "198.51.100.2"))
	assert.Equal(t, "ip:unknown", models.Identifier(anonymous, ""))
}

func TestCheckAndConsumeExhaustion(t *testing.T) {
	store := window.NewMemory()
	svc, err := New(store)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		info := svc.CheckAndConsume(context.Background(), "tenant:small", 3)
		require.False(t, info.IsExceeded)
		assert.Equal(t, 3-i-1, info.Remaining)
	}

	info := svc.CheckAndConsume(context.Background(), "tenant:small", 3)
	assert.True(t, info.IsExceeded)
	assert.Equal(t, 0, info.Remaining)
}

func TestStoreOutageFailsOpen(t *testing.T) {
	store := window.NewMemory()
	store.Unavailable = true
	svc, err := New(store)
	require.NoError(t, err)

	info := svc.CheckAndConsume(context.Background(), "tenant:degraded", 100)
	assert.False(t, info.IsExceeded)
	assert.Equal(t, 100, info.Remaining)
	assert.Equal(t, 100, info.Limit)
}

func TestCurrentDoesNotConsume(t *testing.T) {
	store := window.NewMemory()
	svc, err := New(store)
	require.NoError(t, err)

	authCtx := &authmodels.AuthContext{TenantID: "t-peek", Tier: authmodels.TierStarter}

	svc.CheckRequest(context.Background(), authCtx, "")
	first := svc.Current(context.Background(), authCtx, "")
	second := svc.Current(context.Background(), authCtx, "")

	assert.Equal(t, 99, first.Remaining)
	assert.Equal(t, first.Remaining, second.Remaining)
}
