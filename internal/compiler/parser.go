package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// Parser converts the compact action notation into action components.
//
// An action is a ';' separated list of components:
//
//	[t] "the fraction"           literal text
//	[t] content                   node content
//	[t] attr:font                 attribute value
//	[n] child:0 (pitch:0.3)       recurse into a child, with prosody
//	[m] children sep:"and"        recurse into every child, separated
//	[p] (pause:200)               pause
//	[p] (pitch:-0.2, rate:0.1)    personality for the next component
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse compiles src into components. Empty input yields an empty action.
func (p *Parser) Parse(src string) ([]domain.Component, error) {
	var out []domain.Component
	for i, part := range splitComponents(src) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c, err := parseComponent(part)
		if err != nil {
			return nil, fmt.Errorf("component %d %q: %w", i, part, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// splitComponents splits on ';' outside of quotes.
func splitComponents(src string) []string {
	var parts []string
	var cur strings.Builder
	inQuote, escaped := false, false
	for _, r := range src {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	return append(parts, cur.String())
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

func (s *scanner) done() bool {
	s.skipSpace()
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

// word reads up to the next space, '(' or end.
func (s *scanner) word() string {
	s.skipSpace()
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if unicode.IsSpace(rune(c)) || c == '(' {
			break
		}
		if c == '"' {
			// A quoted value belongs to the word, e.g. sep:"and".
			end, err := quotedEnd(s.src, s.pos)
			if err != nil {
				s.pos = len(s.src)
				break
			}
			s.pos = end
			continue
		}
		s.pos++
	}
	return s.src[start:s.pos]
}

func quotedEnd(src string, start int) (int, error) {
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated string")
}

func (s *scanner) quoted() (string, error) {
	s.skipSpace()
	end, err := quotedEnd(s.src, s.pos)
	if err != nil {
		return "", err
	}
	raw := s.src[s.pos:end]
	s.pos = end
	return strconv.Unquote(raw)
}

// group reads a parenthesised key:value list.
func (s *scanner) group() (domain.Prosody, error) {
	s.skipSpace()
	end := strings.IndexByte(s.src[s.pos:], ')')
	if end < 0 {
		return nil, fmt.Errorf("unterminated prosody group")
	}
	body := s.src[s.pos+1 : s.pos+end]
	s.pos += end + 1

	p := domain.Prosody{}
	for _, kv := range strings.Split(body, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, ":")
		if !ok {
			return nil, fmt.Errorf("prosody entry %q is not key:value", kv)
		}
		k = strings.TrimSpace(k)
		switch k {
		case domain.ProsodyPitch, domain.ProsodyRate, domain.ProsodyVolume, domain.ProsodyPause:
		default:
			return nil, fmt.Errorf("unknown prosody key %q", k)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("prosody %s: %w", k, err)
		}
		p[k] = f
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("empty prosody group")
	}
	return p, nil
}

func (s *scanner) optionalGroup() (domain.Prosody, error) {
	if s.peek() != '(' {
		return nil, nil
	}
	return s.group()
}

func parseComponent(src string) (domain.Component, error) {
	s := &scanner{src: src}
	tag := s.word()
	var (
		c   domain.Component
		err error
	)
	switch tag {
	case "[t]":
		c, err = parseText(s)
	case "[n]":
		c, err = parseNode(s, false)
	case "[m]":
		c, err = parseNode(s, true)
	case "[p]":
		c, err = parsePersonality(s)
	default:
		return c, fmt.Errorf("unknown component tag %q", tag)
	}
	if err != nil {
		return c, err
	}
	if !s.done() {
		return c, fmt.Errorf("unexpected trailing input %q", s.src[s.pos:])
	}
	return c, c.Validate()
}

func parseText(s *scanner) (domain.Component, error) {
	var c domain.Component
	if s.peek() == '"' {
		text, err := s.quoted()
		if err != nil {
			return c, err
		}
		c = domain.Literal(text)
	} else {
		w := s.word()
		switch {
		case w == "content":
			c = domain.ContentOf()
		case strings.HasPrefix(w, "attr:"):
			c = domain.AttrOf(strings.TrimPrefix(w, "attr:"))
		default:
			return c, fmt.Errorf("text expects a quoted string, content or attr:<name>, got %q", w)
		}
	}
	p, err := s.optionalGroup()
	if err != nil {
		return c, err
	}
	c.Prosody = p
	return c, nil
}

// ParseSelector parses self, parent, children or child:N.
func ParseSelector(w string) (domain.Selector, error) {
	switch {
	case w == "self":
		return domain.Self(), nil
	case w == "children":
		return domain.Children(), nil
	case w == "parent":
		return domain.Selector{Kind: domain.SelectParent}, nil
	case strings.HasPrefix(w, "child:"):
		idx, err := strconv.Atoi(strings.TrimPrefix(w, "child:"))
		if err != nil {
			return domain.Selector{}, fmt.Errorf("bad child index in %q", w)
		}
		return domain.Child(idx), nil
	}
	return domain.Selector{}, fmt.Errorf("unknown selector %q", w)
}

func parseNode(s *scanner, multi bool) (domain.Component, error) {
	var c domain.Component
	sel := domain.Children()
	if p := s.peek(); p != 0 && p != '(' {
		w := s.word()
		if !strings.HasPrefix(w, "sep:") {
			var err error
			if sel, err = ParseSelector(w); err != nil {
				return c, err
			}
		} else {
			s.pos -= len(w)
		}
	} else if !multi {
		return c, fmt.Errorf("node component needs a selector")
	}
	c = domain.Recurse(sel)

	if p := s.peek(); p == 's' {
		w := s.word()
		if !strings.HasPrefix(w, "sep:") {
			return c, fmt.Errorf("unexpected %q", w)
		}
		if !multi {
			return c, fmt.Errorf("separator is only allowed on [m]")
		}
		sep, err := strconv.Unquote(strings.TrimPrefix(w, "sep:"))
		if err != nil {
			return c, fmt.Errorf("separator must be quoted: %w", err)
		}
		c.Separator = sep
	}

	p, err := s.optionalGroup()
	if err != nil {
		return c, err
	}
	c.Prosody = p
	return c, nil
}

func parsePersonality(s *scanner) (domain.Component, error) {
	if s.peek() != '(' {
		return domain.Component{}, fmt.Errorf("[p] expects a prosody group")
	}
	p, err := s.group()
	if err != nil {
		return domain.Component{}, err
	}
	if len(p) == 1 {
		if ms, ok := p[domain.ProsodyPause]; ok {
			return domain.Pause(ms), nil
		}
	}
	return domain.Personality(p), nil
}

// Format renders components back into the compact notation.
func Format(action []domain.Component) string {
	parts := make([]string, 0, len(action))
	for _, c := range action {
		var b strings.Builder
		switch c.Type {
		case domain.ComponentText:
			b.WriteString("[t] ")
			switch c.Source {
			case domain.SourceContent:
				b.WriteString("content")
			case domain.SourceAttr:
				b.WriteString("attr:" + c.Attr)
			default:
				b.WriteString(strconv.Quote(c.Text))
			}
		case domain.ComponentNode:
			if c.Selector.Kind == domain.SelectChildren {
				b.WriteString("[m] children")
				if c.Separator != "" {
					b.WriteString(" sep:" + strconv.Quote(c.Separator))
				}
			} else {
				b.WriteString("[n] " + c.Selector.String())
			}
		case domain.ComponentPause, domain.ComponentPersonality:
			b.WriteString("[p]")
		}
		if len(c.Prosody) > 0 {
			b.WriteString(" (")
			for i, k := range c.Prosody.Keys() {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(k + ":" + strconv.FormatFloat(c.Prosody[k], 'g', -1, 64))
			}
			b.WriteString(")")
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "; ")
}
