package ability

// Rule describes how one (kind, action) pair is authorized.
type Rule struct {
	Kind      ResourceKind
	Action    Action
	AdminOnly bool
	// ScopeFree rules ignore the subject's organization entirely. Everything
	// else requires an explicit organization on the subject; a scoped subject
	// without an organization id is denied, never treated as a wildcard.
	ScopeFree bool
}

// Ruleset is the compiled rule table consulted by the engine.
type Ruleset map[ResourceKind]map[Action]Rule

// DefaultRules builds the rule table. Every kind gets the four canonical
// actions scoped to the subject's organization; Organization itself is the
// tenant boundary, so creating and deleting one is an admin-only, scope-free
// operation.
func DefaultRules() Ruleset {
	rs := make(Ruleset, len(Kinds()))
	for _, kind := range Kinds() {
		actions := make(map[Action]Rule, 4)
		for _, action := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
			actions[action] = Rule{Kind: kind, Action: action}
		}
		rs[kind] = actions
	}

	rs[KindOrganization][ActionCreate] = Rule{Kind: KindOrganization, Action: ActionCreate, AdminOnly: true, ScopeFree: true}
	rs[KindOrganization][ActionDelete] = Rule{Kind: KindOrganization, Action: ActionDelete, AdminOnly: true, ScopeFree: true}

	// User administration crosses tenant data (role changes, activation), so
	// it stays admin-only even inside the actor's own organization.
	rs[KindUser][ActionCreate] = Rule{Kind: KindUser, Action: ActionCreate, AdminOnly: true}
	rs[KindUser][ActionDelete] = Rule{Kind: KindUser, Action: ActionDelete, AdminOnly: true}

	return rs
}

func (rs Ruleset) lookup(kind ResourceKind, action Action) (Rule, bool) {
	actions, ok := rs[kind]
	if !ok {
		return Rule{}, false
	}
	rule, ok := actions[action]
	return rule, ok
}
