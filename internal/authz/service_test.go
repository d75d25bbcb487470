package authz

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

type mockStore struct {
	system      map[uuid.UUID][]RoleTemplate
	memberships map[uuid.UUID][]MembershipGrant
	chains      map[uuid.UUID][]uuid.UUID

	systemErr      error
	membershipsErr error
	chainErr       error
}

func newMockStore() *mockStore {
	return &mockStore{
		system:      make(map[uuid.UUID][]RoleTemplate),
		memberships: make(map[uuid.UUID][]MembershipGrant),
		chains:      make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *mockStore) SystemGrants(ctx context.Context, userID uuid.UUID) ([]RoleTemplate, error) {
	if m.systemErr != nil {
		return nil, m.systemErr
	}
	return m.system[userID], nil
}

func (m *mockStore) MembershipGrants(ctx context.Context, userID uuid.UUID) ([]MembershipGrant, error) {
	if m.membershipsErr != nil {
		return nil, m.membershipsErr
	}
	return m.memberships[userID], nil
}

func (m *mockStore) AncestorChain(ctx context.Context, accountID uuid.UUID) ([]uuid.UUID, error) {
	if m.chainErr != nil {
		return nil, m.chainErr
	}
	return m.chains[accountID], nil
}

func newTestService(store Store) *Service {
	return NewService(store, nil, slog.Default())
}

func TestHasPermissionGranted(t *testing.T) {
	store := newMockStore()
	user := uuid.New()
	account := uuid.New()
	store.memberships[user] = []MembershipGrant{{
		MembershipID: uuid.New(),
		AccountID:    account,
		Templates: []RoleTemplate{tpl("Contributor", false,
			Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeAccount},
		)},
	}}
	store.chains[account] = []uuid.UUID{account}

	svc := newTestService(store)
	ok, err := svc.HasPermission(context.Background(), user, ResourceTickets, ActionView, account)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(context.Background(), user, ResourceTickets, ActionDelete, account)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionUnknownUserDenies(t *testing.T) {
	svc := newTestService(newMockStore())

	ok, err := svc.HasPermission(context.Background(), uuid.New(), ResourceTickets, ActionView, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionSuperAdmin(t *testing.T) {
	store := newMockStore()
	user := uuid.New()
	super := tpl("Super Admin", true)
	super.Scope = RoleScopeSystem
	store.system[user] = []RoleTemplate{super}

	svc := newTestService(store)
	for _, account := range []uuid.UUID{uuid.Nil, uuid.New()} {
		ok, err := svc.HasPermission(context.Background(), user, ResourceBilling, ActionDelete, account)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestHasPermissionValidation(t *testing.T) {
	svc := newTestService(newMockStore())
	ctx := context.Background()

	_, err := svc.HasPermission(ctx, uuid.Nil, ResourceTickets, ActionView, uuid.Nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.HasPermission(ctx, uuid.New(), "", ActionView, uuid.Nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.HasPermission(ctx, uuid.New(), ResourceTickets, "", uuid.Nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	// Check inputs must name a catalog pair; wildcards live in grants only.
	_, err = svc.HasPermission(ctx, uuid.New(), Wildcard, Wildcard, uuid.Nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.HasPermission(ctx, uuid.New(), "spaceships", ActionView, uuid.Nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestHasPermissionStoreFailureIsNotDenial(t *testing.T) {
	store := newMockStore()
	store.systemErr = errors.New("connection refused")

	svc := newTestService(store)
	ok, err := svc.HasPermission(context.Background(), uuid.New(), ResourceTickets, ActionView, uuid.Nil)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.False(t, ok)
}

func TestHasPermissionChainFailure(t *testing.T) {
	store := newMockStore()
	store.chainErr = errors.New("connection refused")

	svc := newTestService(store)
	_, err := svc.HasPermission(context.Background(), uuid.New(), ResourceTickets, ActionView, uuid.New())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestResolveSkipsMembershipLoadWithoutAccount(t *testing.T) {
	store := newMockStore()
	store.membershipsErr = errors.New("should not be called")
	user := uuid.New()
	reporter := tpl("Reporter", false, Tuple{Resource: ResourceReports, Action: ActionView, Scope: ScopeGlobal})
	reporter.Scope = RoleScopeSystem
	store.system[user] = []RoleTemplate{reporter}

	svc := newTestService(store)
	set, err := svc.Resolve(context.Background(), user, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, set.Allows(ResourceReports, ActionView))
}

func TestResolveUnknownAccountEmptyContribution(t *testing.T) {
	store := newMockStore()
	user := uuid.New()
	account := uuid.New()
	store.memberships[user] = []MembershipGrant{{
		MembershipID: uuid.New(),
		AccountID:    account,
		Templates: []RoleTemplate{tpl("Contributor", false,
			Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeAccount},
		)},
	}}
	store.chains[account] = []uuid.UUID{account}

	svc := newTestService(store)
	set, err := svc.Resolve(context.Background(), user, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}
