package compiler_test

import (
	"testing"

	"github.com/aretw0/mathspeak/internal/compiler"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Parse(t *testing.T) {
	p := compiler.NewParser()

	action, err := p.Parse(`[t] "the fraction"; [n] child:0 (pitch:0.3); [t] "over; under"; [n] child:1; [p] (pause:250)`)
	require.NoError(t, err)
	require.Len(t, action, 5)

	assert.Equal(t, domain.Literal("the fraction"), action[0])

	assert.Equal(t, domain.ComponentNode, action[1].Type)
	assert.Equal(t, domain.Child(0), action[1].Selector)
	assert.Equal(t, domain.Prosody{domain.ProsodyPitch: 0.3}, action[1].Prosody)

	assert.Equal(t, "over; under", action[2].Text)
	assert.Equal(t, domain.Pause(250), action[4])
}

func TestParser_TextSources(t *testing.T) {
	p := compiler.NewParser()
	action, err := p.Parse(`[t] content; [t] attr:font (rate:-0.1)`)
	require.NoError(t, err)
	require.Len(t, action, 2)
	assert.Equal(t, domain.ContentOf(), action[0])
	assert.Equal(t, domain.SourceAttr, action[1].Source)
	assert.Equal(t, "font", action[1].Attr)
	assert.Equal(t, -0.1, action[1].Prosody[domain.ProsodyRate])
}

func TestParser_Multi(t *testing.T) {
	p := compiler.NewParser()

	action, err := p.Parse(`[m] children sep:"and" (volume:0.5)`)
	require.NoError(t, err)
	require.Len(t, action, 1)
	assert.Equal(t, domain.Children(), action[0].Selector)
	assert.Equal(t, "and", action[0].Separator)
	assert.Equal(t, 0.5, action[0].Prosody[domain.ProsodyVolume])

	action, err = p.Parse(`[m] sep:"comma"`)
	require.NoError(t, err)
	assert.Equal(t, domain.Children(), action[0].Selector)
	assert.Equal(t, "comma", action[0].Separator)

	action, err = p.Parse(`[m]`)
	require.NoError(t, err)
	assert.Equal(t, domain.Children(), action[0].Selector)
}

func TestParser_Personality(t *testing.T) {
	p := compiler.NewParser()
	action, err := p.Parse(`[p] (pitch:-0.2, pause:100); [n] self`)
	require.NoError(t, err)
	require.Len(t, action, 2)
	assert.Equal(t, domain.ComponentPersonality, action[0].Type)
	assert.Equal(t, domain.Prosody{domain.ProsodyPitch: -0.2, domain.ProsodyPause: 100}, action[0].Prosody)
	assert.Equal(t, domain.Self(), action[1].Selector)
}

func TestParser_Errors(t *testing.T) {
	p := compiler.NewParser()
	bad := []string{
		`[x] "nope"`,
		`[t] "unterminated`,
		`[t] bare`,
		`[t] ""`,
		`[n]`,
		`[n] child:first`,
		`[n] child:0 sep:"and"`,
		`[n] cousin`,
		`[n] child:0 trailing`,
		`[p] (pitch)`,
		`[p] (tone:1)`,
		`[p] (pitch:0.1`,
		`[p]`,
	}
	for _, src := range bad {
		_, err := p.Parse(src)
		assert.Error(t, err, "expected error for %q", src)
	}
}

func TestParser_EmptyAction(t *testing.T) {
	action, err := compiler.NewParser().Parse(" ;  ; ")
	require.NoError(t, err)
	assert.Empty(t, action)
}

func TestFormat_RoundTrip(t *testing.T) {
	src := `[t] "the square root of"; [n] child:0 (pitch:0.2); [m] children sep:"and"; [t] content; [p] (pause:300)`
	p := compiler.NewParser()
	action, err := p.Parse(src)
	require.NoError(t, err)

	assert.Equal(t, src, compiler.Format(action))

	again, err := p.Parse(compiler.Format(action))
	require.NoError(t, err)
	assert.Equal(t, action, again)
}

func TestParseSelector(t *testing.T) {
	sel, err := compiler.ParseSelector("child:2")
	require.NoError(t, err)
	assert.Equal(t, domain.Child(2), sel)

	sel, err = compiler.ParseSelector("parent")
	require.NoError(t, err)
	assert.Equal(t, domain.SelectParent, sel.Kind)

	_, err = compiler.ParseSelector("sibling")
	assert.Error(t, err)
}
