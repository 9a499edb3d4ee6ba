package rulesets_test

import (
	"context"
	"testing"

	"github.com/aretw0/mathspeak/internal/runtime"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/rulebase"
	"github.com/aretw0/mathspeak/pkg/speech"
	"github.com/aretw0/mathspeak/rulesets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engine(t *testing.T) *runtime.Engine {
	t.Helper()
	rules, err := rulesets.Rules()
	require.NoError(t, err)
	base := rulebase.New()
	require.NoError(t, base.Load(rules...))
	return runtime.NewEngine(base)
}

func speak(t *testing.T, e *runtime.Engine, tree *domain.Tree, style string) string {
	t.Helper()
	seq, err := e.Evaluate(context.Background(), tree, tree.Root(), domain.Constraint{Domain: "default", Style: style})
	require.NoError(t, err)
	return speech.Render(seq)
}

func TestRules_Constraints(t *testing.T) {
	e := engine(t)
	assert.Equal(t, []domain.Constraint{
		{Domain: "default", Style: "default"},
		{Domain: "default", Style: "terse"},
		{Domain: "default", Style: "verbose"},
	}, e.Constraints())
}

func fraction() *domain.Tree {
	tree := domain.NewTree()
	root := tree.Add(domain.KindFraction, "", "", nil)
	_, _ = tree.AddChild(root, domain.KindIdentifier, "", "a", nil)
	_, _ = tree.AddChild(root, domain.KindNumber, "", "2", nil)
	return tree
}

func TestRules_Styles(t *testing.T) {
	e := engine(t)
	tests := []struct {
		style string
		want  string
	}{
		{"default", "the fraction a over 2"},
		{"verbose", "start fraction a over 2 end fraction"},
		{"terse", "a over 2"},
		{"unknown", "the fraction a over 2"},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			assert.Equal(t, tt.want, speak(t, e, fraction(), tt.style))
		})
	}
}

func TestRules_Relation(t *testing.T) {
	// x^2 + 1 = y
	tree := domain.NewTree()
	rel := tree.Add(domain.KindRelation, "equality", "=", nil)
	sum, _ := tree.AddChild(rel, domain.KindInfixOp, "addition", "+", nil)
	sup, _ := tree.AddChild(sum, domain.KindSuperscript, "", "", nil)
	_, _ = tree.AddChild(sup, domain.KindIdentifier, "", "x", nil)
	_, _ = tree.AddChild(sup, domain.KindNumber, "", "2", nil)
	_, _ = tree.AddChild(sum, domain.KindNumber, "", "1", nil)
	_, _ = tree.AddChild(rel, domain.KindIdentifier, "", "y", nil)

	e := engine(t)
	assert.Equal(t, "x squared plus 1 equals y", speak(t, e, tree, "default"))
	assert.Equal(t, "x super 2 plus 1 equals y", speak(t, e, tree, "terse"))
}

func TestRules_Power(t *testing.T) {
	tree := domain.NewTree()
	sup := tree.Add(domain.KindSuperscript, "", "", nil)
	_, _ = tree.AddChild(sup, domain.KindIdentifier, "", "e", nil)
	_, _ = tree.AddChild(sup, domain.KindIdentifier, "", "n", nil)

	seq, err := engine(t).Evaluate(context.Background(), tree, sup, domain.DefaultConstraint)
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "to the", "n", "power"}, domain.Texts(seq))
	assert.InDelta(t, 0.35, seq[2].Prosody[domain.ProsodyPitch], 1e-9)
}

func TestRules_WildcardFallback(t *testing.T) {
	tree := domain.NewTree()
	root := tree.Add("matrix", "", "", nil)
	_, _ = tree.AddChild(root, domain.KindNumber, "", "1", nil)
	_, _ = tree.AddChild(root, domain.KindNumber, "", "0", nil)

	assert.Equal(t, "1 0", speak(t, engine(t), tree, "default"))
}
