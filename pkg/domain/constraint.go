package domain

import (
	"sort"
	"strings"
)

// Constraint is the dynamic (domain, style) pair that selects the active rule family.
type Constraint struct {
	Domain string `json:"domain" yaml:"domain" mapstructure:"domain"`
	Style  string `json:"style" yaml:"style" mapstructure:"style"`
}

// DefaultConstraint is the universal (default, default) pair.
var DefaultConstraint = Constraint{Domain: DefaultDomain, Style: DefaultStyle}

// Normalize fills unset fields with the defaults.
func (c Constraint) Normalize() Constraint {
	c.Domain = strings.TrimSpace(c.Domain)
	c.Style = strings.TrimSpace(c.Style)
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	if c.Style == "" {
		c.Style = DefaultStyle
	}
	return c
}

// Less orders constraints by domain, then style.
func (c Constraint) Less(o Constraint) bool {
	if c.Domain != o.Domain {
		return c.Domain < o.Domain
	}
	return c.Style < o.Style
}

func (c Constraint) String() string {
	return c.Domain + "." + c.Style
}

// SortConstraints sorts in place using Less and returns the slice.
func SortConstraints(cs []Constraint) []Constraint {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Less(cs[j]) })
	return cs
}

// Resolution is the outcome of resolving a requested constraint against a rule base.
type Resolution struct {
	// Requested is the normalized request. Within one rule base generation it
	// determines Order, so it is the cache key component.
	Requested Constraint
	// Resolved is the most specific constraint in Order.
	Resolved Constraint
	// Order lists the constraints to try, most specific first.
	// It always ends with DefaultConstraint.
	Order []Constraint
}

// Resolve computes the fallback order for request given the constraints present in
// a rule base. Candidates are tried as (d,s), (d,default), (default,s), (default,default);
// only those present in available are kept, except the final (default,default) which is
// always appended so resolution is total.
func Resolve(request Constraint, available []Constraint) Resolution {
	req := request.Normalize()
	present := make(map[Constraint]bool, len(available))
	for _, c := range available {
		present[c.Normalize()] = true
	}

	candidates := []Constraint{
		req,
		{Domain: req.Domain, Style: DefaultStyle},
		{Domain: DefaultDomain, Style: req.Style},
	}

	seen := make(map[Constraint]bool, 4)
	order := make([]Constraint, 0, 4)
	for _, c := range candidates {
		if c == DefaultConstraint || seen[c] || !present[c] {
			continue
		}
		seen[c] = true
		order = append(order, c)
	}
	order = append(order, DefaultConstraint)

	return Resolution{Requested: req, Resolved: order[0], Order: order}
}
