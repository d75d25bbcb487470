package accounts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tempus-hq/tempus/internal/platform/httpx"
)

type mockRepository struct {
	accounts map[uuid.UUID]Account
	members  map[uuid.UUID]int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		accounts: make(map[uuid.UUID]Account),
		members:  make(map[uuid.UUID]int),
	}
}

func (m *mockRepository) Create(ctx context.Context, name string, parentID *uuid.UUID) (Account, error) {
	if parentID != nil {
		if _, ok := m.accounts[*parentID]; !ok {
			return Account{}, fmt.Errorf("%w: parent account", httpx.ErrNotFound)
		}
	}
	a := Account{ID: uuid.New(), Name: name, ParentID: parentID, CreatedAt: time.Now()}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, httpx.ErrNotFound
	}
	return a, nil
}

func (m *mockRepository) List(ctx context.Context) ([]Account, error) {
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockRepository) Subtree(ctx context.Context, id uuid.UUID) ([]Account, error) {
	root, ok := m.accounts[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	out := []Account{root}
	frontier := []uuid.UUID{id}
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for _, a := range m.accounts {
			if a.ParentID != nil && *a.ParentID == next {
				out = append(out, a)
				frontier = append(frontier, a.ID)
			}
		}
	}
	return out, nil
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.accounts[id]; !ok {
		return httpx.ErrNotFound
	}
	for _, a := range m.accounts {
		if a.ParentID != nil && *a.ParentID == id {
			return fmt.Errorf("%w: account has children", httpx.ErrInUse)
		}
	}
	if m.members[id] > 0 {
		return fmt.Errorf("%w: account has members", httpx.ErrInUse)
	}
	delete(m.accounts, id)
	return nil
}

func TestAccountCreate(t *testing.T) {
	svc := NewService(newMockRepository())

	root, err := svc.Create(context.Background(), "  Tempus HQ  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "Tempus HQ", root.Name)
	assert.Nil(t, root.ParentID)

	child, err := svc.Create(context.Background(), "North Region", &root.ID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, root.ID, *child.ParentID)
}

func TestAccountCreateValidation(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Create(context.Background(), "   ", nil)
	assert.ErrorIs(t, err, httpx.ErrValidation)

	ghost := uuid.New()
	_, err = svc.Create(context.Background(), "Orphan", &ghost)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestAccountSubtree(t *testing.T) {
	svc := NewService(newMockRepository())

	root, err := svc.Create(context.Background(), "Root", nil)
	require.NoError(t, err)
	mid, err := svc.Create(context.Background(), "Mid", &root.ID)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "Leaf", &mid.ID)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "Other Root", nil)
	require.NoError(t, err)

	tree, err := svc.Subtree(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Len(t, tree, 3)

	tree, err = svc.Subtree(context.Background(), mid.ID)
	require.NoError(t, err)
	assert.Len(t, tree, 2)
}

func TestAccountDeleteGuards(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)

	root, err := svc.Create(context.Background(), "Root", nil)
	require.NoError(t, err)
	child, err := svc.Create(context.Background(), "Child", &root.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(context.Background(), root.ID), httpx.ErrInUse)

	repo.members[child.ID] = 2
	assert.ErrorIs(t, svc.Delete(context.Background(), child.ID), httpx.ErrInUse)

	repo.members[child.ID] = 0
	require.NoError(t, svc.Delete(context.Background(), child.ID))
	require.NoError(t, svc.Delete(context.Background(), root.ID))
}
