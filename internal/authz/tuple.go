package authz

import "sort"

// Scope bounds how far a granted tuple reaches from its anchor account.
type Scope string

const (
	// ScopeOwn limits a grant to records owned by the user.
	ScopeOwn Scope = "own"
	// ScopeAccount covers the membership's account only.
	ScopeAccount Scope = "account"
	// ScopeSubsidiary covers the membership's account and all descendants.
	ScopeSubsidiary Scope = "subsidiary"
	// ScopeGlobal covers every account.
	ScopeGlobal Scope = "global"
)

// Valid reports whether the scope is one of the recognised values.
func (s Scope) Valid() bool {
	switch s {
	case ScopeOwn, ScopeAccount, ScopeSubsidiary, ScopeGlobal:
		return true
	}
	return false
}

// Tuple is a single permission grant. Resource and Action may hold the
// Wildcard; tuples compare by structural equality, never by a joined
// string key.
type Tuple struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    Scope  `json:"scope"`
}

// Set is a deduplicated collection of tuples. The universal set, produced
// by a super-admin template, matches every resource and action.
type Set struct {
	all    bool
	tuples map[Tuple]struct{}
}

// NewSet builds a set from the given tuples.
func NewSet(tuples ...Tuple) Set {
	s := Set{tuples: make(map[Tuple]struct{}, len(tuples))}
	for _, t := range tuples {
		s.tuples[t] = struct{}{}
	}
	return s
}

// UniversalSet returns the set matching every resource and action.
func UniversalSet() Set {
	return Set{all: true}
}

// Universal reports whether the set came from an inherit-all template.
func (s Set) Universal() bool {
	return s.all
}

// Len returns the number of distinct tuples. The universal set has none.
func (s Set) Len() int {
	return len(s.tuples)
}

// Contains reports whether the exact tuple is present.
func (s Set) Contains(t Tuple) bool {
	if s.all {
		return true
	}
	_, ok := s.tuples[t]
	return ok
}

// Allows applies the match order from the check contract: exact pair first,
// then resource:*, then *:*. Scope does not participate in matching.
func (s Set) Allows(resource, action string) bool {
	if s.all {
		return true
	}
	for t := range s.tuples {
		if t.Resource == resource && t.Action == action {
			return true
		}
	}
	for t := range s.tuples {
		if t.Resource == resource && t.Action == Wildcard {
			return true
		}
	}
	for t := range s.tuples {
		if t.Resource == Wildcard && t.Action == Wildcard {
			return true
		}
	}
	return false
}

// Tuples returns the members ordered by resource, action, scope.
func (s Set) Tuples() []Tuple {
	out := make([]Tuple, 0, len(s.tuples))
	for t := range s.tuples {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		if out[i].Action != out[j].Action {
			return out[i].Action < out[j].Action
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

func (s *Set) add(t Tuple) {
	if s.tuples == nil {
		s.tuples = make(map[Tuple]struct{})
	}
	s.tuples[t] = struct{}{}
}
