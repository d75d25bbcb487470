package authz

import "github.com/google/uuid"

// ResolveGrants computes the effective permission set for one check target.
//
// Order of evaluation:
//  1. Any system template with InheritAll wins outright (universal set).
//  2. Tuples from system templates apply regardless of target.
//  3. With a target account, the membership on that account contributes all
//     of its tuples, and memberships on ancestor accounts contribute their
//     subsidiary- and global-scoped tuples (a subsidiary grant on a parent
//     reaches every descendant; global is at least as broad).
//
// The ancestor walk iterates the pre-loaded parent chain with a visited set:
// account parents are assigned once at creation and never form a cycle, but
// a corrupted chain must terminate rather than loop. An unknown target
// yields an empty chain and therefore no membership contribution.
func ResolveGrants(g Grants, target uuid.UUID) Set {
	for _, tpl := range g.System {
		if tpl.InheritAll {
			return UniversalSet()
		}
	}

	out := NewSet()
	for _, tpl := range g.System {
		for _, t := range tpl.Tuples {
			out.add(t)
		}
	}

	if target == uuid.Nil {
		return out
	}

	byAccount := make(map[uuid.UUID]MembershipGrant, len(g.Memberships))
	for _, mg := range g.Memberships {
		byAccount[mg.AccountID] = mg
	}

	visited := make(map[uuid.UUID]struct{}, len(g.Ancestors))
	for _, accountID := range g.Ancestors {
		if _, seen := visited[accountID]; seen {
			break
		}
		visited[accountID] = struct{}{}

		mg, ok := byAccount[accountID]
		if !ok {
			continue
		}
		direct := accountID == target
		for _, tpl := range mg.Templates {
			if tpl.InheritAll {
				// An account-level inherit-all template covers its own
				// account only; it is not the system super-admin.
				if direct {
					out.add(Tuple{Resource: Wildcard, Action: Wildcard, Scope: ScopeAccount})
				}
				continue
			}
			for _, t := range tpl.Tuples {
				if direct || t.Scope == ScopeSubsidiary || t.Scope == ScopeGlobal {
					out.add(t)
				}
			}
		}
	}
	return out
}
