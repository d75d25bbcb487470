// Package authz implements permission resolution for the Tempus platform.
//
// Grants are expressed as (resource, action, scope) tuples bundled into role
// templates. Templates reach a user either through a system assignment or
// through an account membership; the resolver folds both into one effective
// set per (user, account) pair.
package authz

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Wildcard matches any resource or action when present in a stored tuple.
const Wildcard = "*"

// Resources protected by the platform.
const (
	ResourceTimeEntries = "time-entries"
	ResourceTickets     = "tickets"
	ResourceInvoices    = "invoices"
	ResourceBilling     = "billing"
	ResourceAccounts    = "accounts"
	ResourceMembers     = "members"
	ResourceRoles       = "roles"
	ResourceUsers       = "users"
	ResourceReports     = "reports"
)

// Actions recognised on resources.
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionAssign  = "assign"
	ActionExport  = "export"
)

var crud = []string{ActionView, ActionCreate, ActionUpdate, ActionDelete}

// catalog enumerates every resource:action pair the platform recognises.
// Stored tuples may additionally carry wildcards; check inputs may not.
var catalog = map[string][]string{
	ResourceTimeEntries: append(crud, ActionApprove, ActionExport),
	ResourceTickets:     append(crud, ActionAssign),
	ResourceInvoices:    append(crud, ActionApprove, ActionExport),
	ResourceBilling:     crud,
	ResourceAccounts:    crud,
	ResourceMembers:     append(crud, ActionAssign),
	ResourceRoles:       append(crud, ActionAssign),
	ResourceUsers:       crud,
	ResourceReports:     []string{ActionView, ActionExport},
}

// KnownResource reports whether the resource exists in the catalog.
func KnownResource(resource string) bool {
	_, ok := catalog[resource]
	return ok
}

// KnownAction reports whether the resource:action pair exists in the catalog.
func KnownAction(resource, action string) bool {
	actions, ok := catalog[resource]
	if !ok {
		return false
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// CatalogEntry is one resource:action pair with a display label.
type CatalogEntry struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Label    string `json:"label"`
}

var titler = cases.Title(language.English)

// Label renders a human readable name for a resource:action pair,
// e.g. "time-entries"/"approve" becomes "Approve Time Entries".
func Label(resource, action string) string {
	noun := titler.String(strings.ReplaceAll(resource, "-", " "))
	return titler.String(action) + " " + noun
}

// Catalog returns every recognised pair ordered by resource then action.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(catalog)*4)
	for resource, actions := range catalog {
		for _, action := range actions {
			entries = append(entries, CatalogEntry{
				Resource: resource,
				Action:   action,
				Label:    Label(resource, action),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Resource != entries[j].Resource {
			return entries[i].Resource < entries[j].Resource
		}
		return entries[i].Action < entries[j].Action
	})
	return entries
}
