package abac

// ResolveConditions binds attribute references in conds against the acting
// user's attributes. Pure substitution: literals pass through unchanged and
// resolution itself never fails. The boolean result reports whether every
// reference resolved to a present, non-nil attribute; a rule carrying an
// unresolved reference must never match a record, so the compiler marks it
// accordingly instead of letting a nil condition coincidentally equal a
// nil field on the target.
func ResolveConditions(conds map[string]ConditionValue, user UserContext) (map[string]any, bool) {
	if len(conds) == 0 {
		return nil, true
	}
	resolved := make(map[string]any, len(conds))
	complete := true
	for key, value := range conds {
		if !value.IsRef() {
			resolved[key] = value.Literal
			continue
		}
		attr, ok := user.Attr(value.Attr)
		if !ok || attr == nil {
			resolved[key] = nil
			complete = false
			continue
		}
		resolved[key] = attr
	}
	return resolved, complete
}
