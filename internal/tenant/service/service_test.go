package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmodels "paygate/internal/auth/models"
	"paygate/internal/tenant/models"
	"paygate/internal/tenant/store"
	dErrors "paygate/pkg/domain-errors"
)

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) InvalidateCredential(_ context.Context, credential string) error {
	f.invalidated = append(f.invalidated, credential)
	return nil
}

func newService(t *testing.T) (*Service, *store.MemoryStore, *fakeInvalidator) {
	t.Helper()
	st := store.NewMemory()
	inv := &fakeInvalidator{}
	svc, err := New(st, WithInvalidator(inv))
	require.NoError(t, err)
	return svc, st, inv
}

func TestCreateTenant(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{
		Email: "ops@acme.test",
		Tier:  "growth",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tenant.ID)
	assert.Equal(t, authmodels.TierGrowth, tenant.Tier)

	t.Run("duplicate email conflicts", func(t *testing.T) {
		_, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{Email: "OPS@acme.test"})
		var dErr *dErrors.Error
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, dErrors.CodeTenantExists, dErr.Code)
	})

	t.Run("unknown tier falls back to starter", func(t *testing.T) {
		created, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{
			Email: "other@acme.test",
			Tier:  "platinum",
		})
		require.NoError(t, err)
		assert.Equal(t, authmodels.TierStarter, created.Tier)
	})

	t.Run("invalid email rejected", func(t *testing.T) {
		_, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{Email: "not-an-email"})
		var dErr *dErrors.Error
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, dErrors.CodeValidation, dErr.Code)
	})
}

func TestIssueKey(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{Email: "keys@acme.test"})
	require.NoError(t, err)

	key, err := svc.IssueKey(ctx, tenant.ID, "ci")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key.Key, "pk_"))
	assert.Len(t, key.Key, len("pk_")+64)
	assert.True(t, key.IsActive)
	assert.Equal(t, tenant.ID, key.TenantID)

	second, err := svc.IssueKey(ctx, tenant.ID, "staging")
	require.NoError(t, err)
	assert.NotEqual(t, key.Key, second.Key)

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := svc.IssueKey(ctx, "nope", "x")
		var dErr *dErrors.Error
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, dErrors.CodeTenantNotFound, dErr.Code)
	})
}

func TestRevokeKeyInvalidatesAuthCache(t *testing.T) {
	svc, st, inv := newService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{Email: "revoke@acme.test"})
	require.NoError(t, err)
	key, err := svc.IssueKey(ctx, tenant.ID, "prod")
	require.NoError(t, err)

	admin := &authmodels.AuthContext{Tier: authmodels.TierAdmin, IsStatic: true}
	require.NoError(t, svc.RevokeKey(ctx, admin, key.ID))

	stored, err := st.FindKey(ctx, key.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.Equal(t, []string{key.Key}, inv.invalidated)
}

func TestRevokeKeyTenantScoping(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	owner, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{Email: "owner@acme.test"})
	require.NoError(t, err)
	key, err := svc.IssueKey(ctx, owner.ID, "prod")
	require.NoError(t, err)

	other := &authmodels.AuthContext{TenantID: "someone-else", Tier: authmodels.TierStarter}
	err = svc.RevokeKey(ctx, other, key.ID)
	var dErr *dErrors.Error
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, dErrors.CodeForbidden, dErr.Code)

	self := &authmodels.AuthContext{TenantID: owner.ID, Tier: authmodels.TierStarter}
	require.NoError(t, svc.RevokeKey(ctx, self, key.ID))

	t.Run("missing key", func(t *testing.T) {
		err := svc.RevokeKey(ctx, self, "missing")
		var dErr *dErrors.Error
		require.ErrorAs(t, err, &dErr)
		assert.Equal(t, dErrors.CodeAPIKeyNotFound, dErr.Code)
	})
}

func TestListKeys(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, &models.CreateTenantRequest{Email: "list@acme.test"})
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.IssueKey(ctx, tenant.ID, name)
		require.NoError(t, err)
	}

	keys, err := svc.ListKeys(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	empty, err := svc.ListKeys(ctx, "no-such-tenant")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
