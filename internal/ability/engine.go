package ability

// Engine evaluates the rule table for one actor at a time.
type Engine struct {
	rules Ruleset
}

// NewEngine builds an engine over the default rule table.
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// NewEngineWithRules builds an engine over a custom rule table.
func NewEngineWithRules(rules Ruleset) *Engine {
	return &Engine{rules: rules}
}

// Can reports whether the actor may perform action on subject.
//
// Admins match any organization; everyone else only their home organization.
// A scoped rule evaluated against a subject with no organization id fails
// closed, including for admins: cross-tenant access always names its target.
func (e *Engine) Can(actor Actor, action Action, subject Subject) bool {
	if actor.Status != StatusActive {
		return false
	}

	rule, ok := e.rules.lookup(subject.Kind, action)
	if !ok {
		return false
	}

	if rule.AdminOnly && !actor.IsAdmin() {
		return false
	}

	if rule.ScopeFree {
		return true
	}

	if subject.OrganizationID == nil {
		return false
	}

	if actor.IsAdmin() {
		return true
	}

	if actor.HomeOrganizationID == nil {
		return false
	}
	return *subject.OrganizationID == *actor.HomeOrganizationID
}

// Allowed returns every rule the actor could satisfy for the given
// organization, used by handlers to describe effective permissions.
func (e *Engine) Allowed(actor Actor, orgID *int64) []Rule {
	var out []Rule
	for _, actions := range e.rules {
		for _, rule := range actions {
			subject := Subject{Kind: rule.Kind, OrganizationID: orgID}
			if rule.ScopeFree {
				subject.OrganizationID = nil
			}
			if e.Can(actor, rule.Action, subject) {
				out = append(out, rule)
			}
		}
	}
	return out
}
