package rulebase

import (
	"fmt"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// Validate checks a batch of rules. Names must be unique per constraint within
// the batch; a later batch may reuse a name to override an earlier rule.
func Validate(rules []domain.Rule) error {
	var errs []error
	type nameKey struct {
		name string
		c    domain.Constraint
	}
	seen := make(map[nameKey]int)

	fail := func(i int, r domain.Rule, format string, args ...any) {
		errs = append(errs, &domain.RuleError{Rule: r.Name, Index: i, Reason: fmt.Sprintf(format, args...)})
	}

	for i, r := range rules {
		if r.Name == "" {
			fail(i, r, "missing name")
		} else {
			k := nameKey{r.Name, r.Constraint.Normalize()}
			if prev, dup := seen[k]; dup {
				fail(i, r, "duplicate name under %s (first at #%d)", k.c, prev)
			} else {
				seen[k] = i
			}
		}
		if r.Query.Kind == "" {
			fail(i, r, "query has no kind (use %q to match any node)", domain.Wildcard)
		}
		for _, p := range r.Query.Predicates {
			if err := p.Validate(); err != nil {
				fail(i, r, "query: %v", err)
			}
		}
		for _, p := range r.Preconditions {
			if err := p.Validate(); err != nil {
				fail(i, r, "precondition: %v", err)
			}
		}
		for j, c := range r.Action {
			if err := c.Validate(); err != nil {
				fail(i, r, "action component %d: %v", j, err)
			}
		}
	}

	if len(errs) > 0 {
		return &domain.InvalidRuleBaseError{Errors: errs}
	}
	return nil
}
