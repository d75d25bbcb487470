package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAllowsExactMatch(t *testing.T) {
	set := NewSet(Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeAccount})

	assert.True(t, set.Allows(ResourceTickets, ActionView))
	assert.False(t, set.Allows(ResourceTickets, ActionDelete))
	assert.False(t, set.Allows(ResourceInvoices, ActionView))
}

func TestSetAllowsResourceWildcard(t *testing.T) {
	set := NewSet(Tuple{Resource: ResourceTickets, Action: Wildcard, Scope: ScopeAccount})

	assert.True(t, set.Allows(ResourceTickets, ActionView))
	assert.True(t, set.Allows(ResourceTickets, ActionDelete))
	assert.False(t, set.Allows(ResourceInvoices, ActionView))
}

func TestSetAllowsFullWildcard(t *testing.T) {
	set := NewSet(Tuple{Resource: Wildcard, Action: Wildcard, Scope: ScopeAccount})

	assert.True(t, set.Allows(ResourceTickets, ActionView))
	assert.True(t, set.Allows(ResourceBilling, ActionExport))
}

func TestSetScopeDoesNotAffectMatching(t *testing.T) {
	// Same pair under different scopes must answer the same.
	own := NewSet(Tuple{Resource: ResourceTimeEntries, Action: ActionCreate, Scope: ScopeOwn})
	global := NewSet(Tuple{Resource: ResourceTimeEntries, Action: ActionCreate, Scope: ScopeGlobal})

	assert.Equal(t, own.Allows(ResourceTimeEntries, ActionCreate), global.Allows(ResourceTimeEntries, ActionCreate))
}

func TestSetDeduplicates(t *testing.T) {
	tpl := Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeAccount}
	set := NewSet(tpl, tpl, tpl)

	assert.Equal(t, 1, set.Len())
}

func TestSetDistinguishesScopesAsMembers(t *testing.T) {
	set := NewSet(
		Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeAccount},
		Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeSubsidiary},
	)

	assert.Equal(t, 2, set.Len())
}

func TestUniversalSet(t *testing.T) {
	set := UniversalSet()

	require.True(t, set.Universal())
	assert.True(t, set.Allows(ResourceTickets, ActionView))
	assert.True(t, set.Allows("anything", "whatever"))
	assert.Equal(t, 0, set.Len())
}

func TestSetTuplesSorted(t *testing.T) {
	set := NewSet(
		Tuple{Resource: ResourceTickets, Action: ActionView, Scope: ScopeAccount},
		Tuple{Resource: ResourceBilling, Action: ActionView, Scope: ScopeOwn},
		Tuple{Resource: ResourceBilling, Action: ActionExport, Scope: ScopeOwn},
	)

	tuples := set.Tuples()
	require.Len(t, tuples, 3)
	assert.Equal(t, ResourceBilling, tuples[0].Resource)
	assert.Equal(t, ActionExport, tuples[0].Action)
	assert.Equal(t, ActionView, tuples[1].Action)
	assert.Equal(t, ResourceTickets, tuples[2].Resource)
}

func TestScopeValid(t *testing.T) {
	assert.True(t, ScopeOwn.Valid())
	assert.True(t, ScopeAccount.Valid())
	assert.True(t, ScopeSubsidiary.Valid())
	assert.True(t, ScopeGlobal.Valid())
	assert.False(t, Scope("tenant").Valid())
	assert.False(t, Scope("").Valid())
}
