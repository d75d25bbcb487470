package memberships

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

type membershipKey struct {
	userID    uuid.UUID
	accountID uuid.UUID
}

type mockRepository struct {
	memberships map[uuid.UUID]Membership
	byPair      map[membershipKey]uuid.UUID
	roles       map[uuid.UUID]map[uuid.UUID]bool
	systemRoles map[uuid.UUID]map[uuid.UUID]bool

	assignErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		memberships: make(map[uuid.UUID]Membership),
		byPair:      make(map[membershipKey]uuid.UUID),
		roles:       make(map[uuid.UUID]map[uuid.UUID]bool),
		systemRoles: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (m *mockRepository) CreateMembership(ctx context.Context, userID, accountID uuid.UUID, templateIDs []uuid.UUID) (Membership, error) {
	key := membershipKey{userID, accountID}
	if _, exists := m.byPair[key]; exists {
		return Membership{}, fmt.Errorf("%w: user already a member", httpx.ErrDuplicate)
	}
	mem := Membership{ID: uuid.New(), UserID: userID, AccountID: accountID, CreatedAt: time.Now()}
	m.memberships[mem.ID] = mem
	m.byPair[key] = mem.ID
	m.roles[mem.ID] = make(map[uuid.UUID]bool)
	for _, tid := range templateIDs {
		m.roles[mem.ID][tid] = true
	}
	return mem, nil
}

func (m *mockRepository) GetMembership(ctx context.Context, id uuid.UUID) (Membership, error) {
	mem, ok := m.memberships[id]
	if !ok {
		return Membership{}, httpx.ErrNotFound
	}
	return mem, nil
}

func (m *mockRepository) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	mem, ok := m.memberships[id]
	if !ok {
		return httpx.ErrNotFound
	}
	delete(m.memberships, id)
	delete(m.byPair, membershipKey{mem.UserID, mem.AccountID})
	delete(m.roles, id)
	return nil
}

func (m *mockRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]MemberView, error) {
	var out []MemberView
	for _, mem := range m.memberships {
		if mem.AccountID != accountID {
			continue
		}
		view := MemberView{Membership: mem}
		for tid := range m.roles[mem.ID] {
			view.TemplateIDs = append(view.TemplateIDs, tid)
		}
		out = append(out, view)
	}
	return out, nil
}

func (m *mockRepository) AssignRole(ctx context.Context, membershipID, templateID uuid.UUID) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	if _, ok := m.memberships[membershipID]; !ok {
		return httpx.ErrNotFound
	}
	m.roles[membershipID][templateID] = true
	return nil
}

func (m *mockRepository) RevokeRole(ctx context.Context, membershipID, templateID uuid.UUID) error {
	assigned, ok := m.roles[membershipID]
	if !ok || !assigned[templateID] {
		return httpx.ErrNotFound
	}
	delete(assigned, templateID)
	return nil
}

func (m *mockRepository) AssignSystemRole(ctx context.Context, userID, templateID uuid.UUID) error {
	if m.systemRoles[userID] == nil {
		m.systemRoles[userID] = make(map[uuid.UUID]bool)
	}
	m.systemRoles[userID][templateID] = true
	return nil
}

func (m *mockRepository) RevokeSystemRole(ctx context.Context, userID, templateID uuid.UUID) error {
	assigned := m.systemRoles[userID]
	if assigned == nil || !assigned[templateID] {
		return httpx.ErrNotFound
	}
	delete(assigned, templateID)
	return nil
}

func (m *mockRepository) ListSystemAssignments(ctx context.Context, userID uuid.UUID) ([]SystemAssignment, error) {
	var out []SystemAssignment
	for tid := range m.systemRoles[userID] {
		out = append(out, SystemAssignment{UserID: userID, TemplateID: tid})
	}
	return out, nil
}

type mockInvalidator struct {
	invalidated []uuid.UUID
	err         error
}

func (m *mockInvalidator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, userID)
	return nil
}

type mockEnqueuer struct {
	enqueued []uuid.UUID
	err      error
}

func (m *mockEnqueuer) EnqueueInvalidateUser(ctx context.Context, userID uuid.UUID) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, userID)
	return nil
}

func newTestService() (*Service, *mockRepository, *mockInvalidator) {
	repo := newMockRepository()
	inv := &mockInvalidator{}
	return NewService(repo, inv, &mockEnqueuer{}, slog.Default()), repo, inv
}

func TestEnroll(t *testing.T) {
	svc, _, inv := newTestService()
	user := uuid.New()
	account := uuid.New()

	m, err := svc.Enroll(context.Background(), user, account, []uuid.UUID{uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, user, m.UserID)
	assert.Equal(t, account, m.AccountID)
	require.Len(t, inv.invalidated, 1)
	assert.Equal(t, user, inv.invalidated[0])
}

func TestEnrollDuplicate(t *testing.T) {
	svc, _, inv := newTestService()
	user := uuid.New()
	account := uuid.New()

	_, err := svc.Enroll(context.Background(), user, account, nil)
	require.NoError(t, err)

	_, err = svc.Enroll(context.Background(), user, account, nil)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
	// Failed enrollments do not invalidate.
	assert.Len(t, inv.invalidated, 1)
}

func TestEnrollValidation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Enroll(context.Background(), uuid.Nil, uuid.New(), nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Enroll(context.Background(), uuid.New(), uuid.Nil, nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestWithdrawInvalidatesOwner(t *testing.T) {
	svc, _, inv := newTestService()
	user := uuid.New()

	m, err := svc.Enroll(context.Background(), user, uuid.New(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.Withdraw(context.Background(), m.ID))
	require.Len(t, inv.invalidated, 2)
	assert.Equal(t, user, inv.invalidated[1])

	assert.ErrorIs(t, svc.Withdraw(context.Background(), m.ID), httpx.ErrNotFound)
}

func TestGrantAndRevokeRole(t *testing.T) {
	svc, repo, inv := newTestService()
	user := uuid.New()
	template := uuid.New()

	m, err := svc.Enroll(context.Background(), user, uuid.New(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.GrantRole(context.Background(), m.ID, template))
	assert.True(t, repo.roles[m.ID][template])

	require.NoError(t, svc.RevokeRole(context.Background(), m.ID, template))
	assert.False(t, repo.roles[m.ID][template])

	// enroll + grant + revoke
	assert.Len(t, inv.invalidated, 3)
}

func TestRevokeRoleNotAssigned(t *testing.T) {
	svc, _, _ := newTestService()

	m, err := svc.Enroll(context.Background(), uuid.New(), uuid.New(), nil)
	require.NoError(t, err)

	err = svc.RevokeRole(context.Background(), m.ID, uuid.New())
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestSystemRoleLifecycle(t *testing.T) {
	svc, _, inv := newTestService()
	user := uuid.New()
	template := uuid.New()

	require.NoError(t, svc.GrantSystemRole(context.Background(), user, template))

	assignments, err := svc.ListSystemRoles(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, template, assignments[0].TemplateID)

	require.NoError(t, svc.RevokeSystemRole(context.Background(), user, template))
	assignments, err = svc.ListSystemRoles(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	// Both mutations invalidate the user's snapshots.
	assert.Equal(t, []uuid.UUID{user, user}, inv.invalidated)
}

func TestInvalidationFallsBackToQueue(t *testing.T) {
	repo := newMockRepository()
	inv := &mockInvalidator{err: fmt.Errorf("redis down")}
	enq := &mockEnqueuer{}
	svc := NewService(repo, inv, enq, slog.Default())
	user := uuid.New()

	_, err := svc.Enroll(context.Background(), user, uuid.New(), nil)
	require.NoError(t, err)

	// Failed in-process invalidation lands on the queue instead.
	require.Len(t, enq.enqueued, 1)
	assert.Equal(t, user, enq.enqueued[0])
}

func TestInvalidationSuccessSkipsQueue(t *testing.T) {
	repo := newMockRepository()
	inv := &mockInvalidator{}
	enq := &mockEnqueuer{}
	svc := NewService(repo, inv, enq, slog.Default())

	_, err := svc.Enroll(context.Background(), uuid.New(), uuid.New(), nil)
	require.NoError(t, err)
	assert.Empty(t, enq.enqueued)
}

func TestGrantSystemRoleValidation(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.GrantSystemRole(context.Background(), uuid.Nil, uuid.New())
	assert.ErrorIs(t, err, httpx.ErrValidation)
}
