package roles

import "github.com/tempus-hq/tempus/internal/authz"

// TupleInput is one permission tuple in a template payload.
type TupleInput struct {
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Scope    string `json:"scope" validate:"required,oneof=own account subsidiary global"`
}

// TemplateInput is the create/update payload for a role template.
type TemplateInput struct {
	Name        string       `json:"name" validate:"required,max=120"`
	Description string       `json:"description" validate:"max=500"`
	Scope       string       `json:"scope" validate:"required,oneof=system account"`
	InheritAll  bool         `json:"inherit_all"`
	Tuples      []TupleInput `json:"tuples" validate:"dive"`
}

func (in TemplateInput) tuples() []authz.Tuple {
	out := make([]authz.Tuple, 0, len(in.Tuples))
	for _, t := range in.Tuples {
		out = append(out, authz.Tuple{Resource: t.Resource, Action: t.Action, Scope: authz.Scope(t.Scope)})
	}
	return out
}
