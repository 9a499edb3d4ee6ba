package file

import (
	"fmt"
	"strings"

	"github.com/aretw0/mathspeak/internal/compiler"
	"github.com/aretw0/mathspeak/internal/dto"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ParseRuleSet decodes one YAML rule file. source is used in error messages.
func ParseRuleSet(data []byte, source string) ([]domain.Rule, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s: invalid yaml: %w", source, err)
	}
	if raw == nil {
		return nil, nil
	}

	var set dto.RuleSetFile
	if err := decode(raw, &set); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}

	parser := compiler.NewParser()
	var errs []error
	rules := make([]domain.Rule, 0, len(set.Rules))
	for i, spec := range set.Rules {
		r, err := compileRule(parser, set, spec)
		if err != nil {
			errs = append(errs, &domain.RuleError{Rule: spec.Name, Index: i, Reason: source + ": " + err.Error()})
			continue
		}
		rules = append(rules, r)
	}
	if len(errs) > 0 {
		return nil, &domain.InvalidRuleBaseError{Errors: errs}
	}
	return rules, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func compileRule(parser *compiler.Parser, set dto.RuleSetFile, spec dto.RuleSpec) (domain.Rule, error) {
	r := domain.Rule{
		Name:     spec.Name,
		Priority: spec.Priority,
		Constraint: domain.Constraint{
			Domain: firstNonEmpty(spec.Domain, set.Domain),
			Style:  firstNonEmpty(spec.Style, set.Style),
		}.Normalize(),
	}

	q, err := compileQuery(spec.Query)
	if err != nil {
		return r, err
	}
	q.Predicates = append(q.Predicates, predicates(spec.Where)...)
	r.Query = q
	r.Preconditions = predicates(spec.Preconditions)

	r.Action, err = compileAction(parser, spec.Action)
	if err != nil {
		return r, fmt.Errorf("action: %w", err)
	}
	return r, nil
}

func compileQuery(raw any) (domain.Query, error) {
	switch v := raw.(type) {
	case nil:
		return domain.Query{}, fmt.Errorf("missing query")
	case string:
		return domain.Query{Kind: strings.TrimSpace(v)}, nil
	case map[string]any:
		var spec dto.QuerySpec
		if err := decode(v, &spec); err != nil {
			return domain.Query{}, fmt.Errorf("query: %w", err)
		}
		return domain.Query{Kind: spec.Kind, Predicates: predicates(spec.Predicates)}, nil
	}
	return domain.Query{}, fmt.Errorf("query must be a kind or a map, got %T", raw)
}

func predicates(specs []dto.PredicateSpec) []domain.Predicate {
	if len(specs) == 0 {
		return nil
	}
	out := make([]domain.Predicate, len(specs))
	for i, s := range specs {
		out[i] = domain.Predicate{Field: s.Field, Op: s.Op, Value: s.Value}
	}
	return out
}

func compileAction(parser *compiler.Parser, raw any) ([]domain.Component, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return parser.Parse(v)
	case []any:
		var specs []dto.ComponentSpec
		if err := decode(v, &specs); err != nil {
			return nil, err
		}
		out := make([]domain.Component, 0, len(specs))
		for i, s := range specs {
			c, err := compileComponent(s)
			if err != nil {
				return nil, fmt.Errorf("component %d: %w", i, err)
			}
			out = append(out, c)
		}
		return out, nil
	}
	return nil, fmt.Errorf("must be a string or a list, got %T", raw)
}

func compileComponent(s dto.ComponentSpec) (domain.Component, error) {
	var c domain.Component
	set := 0
	if s.Text != "" {
		c, set = domain.Literal(s.Text), set+1
	}
	if s.Content {
		c, set = domain.ContentOf(), set+1
	}
	if s.Attr != "" {
		c, set = domain.AttrOf(s.Attr), set+1
	}
	if s.Node != "" {
		sel, err := compiler.ParseSelector(s.Node)
		if err != nil {
			return c, err
		}
		c, set = domain.Recurse(sel), set+1
		c.Separator = s.Separator
	}
	if s.Pause != 0 {
		c, set = domain.Pause(s.Pause), set+1
	}
	if len(s.Personality) > 0 {
		c, set = domain.Personality(domain.Prosody(s.Personality)), set+1
	}
	switch {
	case set == 0:
		return c, fmt.Errorf("empty component")
	case set > 1:
		return c, fmt.Errorf("component sets %d kinds, want one", set)
	}
	if len(s.Prosody) > 0 {
		if c.Type != domain.ComponentText && c.Type != domain.ComponentNode {
			return c, fmt.Errorf("prosody is only allowed on text and node components")
		}
		c.Prosody = domain.Prosody(s.Prosody)
	}
	if s.Separator != "" && c.Type != domain.ComponentNode {
		return c, fmt.Errorf("separator is only allowed on node components")
	}
	return c, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
