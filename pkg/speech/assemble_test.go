package speech_test

import (
	"testing"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fractionSeq() []domain.Description {
	return []domain.Description{
		domain.NewDescription("the fraction", 0),
		domain.NewDescription("1", 1),
		domain.NewDescription("over", 0),
		domain.NewDescription("2", 2),
	}
}

func TestRender_Fraction(t *testing.T) {
	seq := fractionSeq()
	assert.Equal(t, "the fraction 1 over 2", speech.Render(seq))
	assert.Equal(t, speech.Render(seq), speech.Render(seq))
}

func TestRender_SkipsEmptyAndTrims(t *testing.T) {
	seq := []domain.Description{{Text: "  a "}, {Text: ""}, {Text: "b"}}
	assert.Equal(t, "a b", speech.Render(seq))
	assert.Equal(t, "", speech.Render(nil))
}

func TestMerge(t *testing.T) {
	high := domain.Prosody{domain.ProsodyPitch: 0.2}
	seq := []domain.Description{
		domain.NewDescription("x", 1),
		domain.NewDescription("squared", 1),
		domain.NewDescription("plus", 0),
		domain.NewDescription("y", 2).WithProsody(high),
		domain.NewDescription("prime", 2).WithProsody(high.Merge(domain.Prosody{domain.ProsodyPause: 150})),
		domain.NewDescription("end", 2).WithProsody(high),
	}

	frags := speech.Merge(seq)
	require.Len(t, frags, 4)
	assert.Equal(t, "x squared", frags[0].Text)
	assert.Equal(t, "plus", frags[1].Text)
	assert.Equal(t, "y prime", frags[2].Text)
	assert.Equal(t, 150.0, frags[2].Prosody[domain.ProsodyPause])
	assert.Equal(t, "end", frags[3].Text, "a pause ends a merged run")

	// Merging never changes the spoken text.
	assert.Equal(t, "x squared plus y prime end", speech.Render(seq))
	// The input is left untouched.
	assert.Equal(t, "x", seq[0].Text)
	assert.Len(t, seq[3].Prosody, 1)
}

func TestRenderSSML(t *testing.T) {
	seq := []domain.Description{
		domain.NewDescription("a < b", 0).WithProsody(domain.Prosody{domain.ProsodyPause: 200}),
		domain.NewDescription("squared", 1).WithProsody(domain.Prosody{domain.ProsodyPitch: 0.3, domain.ProsodyRate: -0.1}),
	}
	assert.Equal(t,
		`<speak>a &lt; b<break time="200ms"/> <prosody pitch="+30%" rate="-10%">squared</prosody></speak>`,
		speech.RenderSSML(seq))
}

func TestRenderSSML_RoundsPause(t *testing.T) {
	seq := []domain.Description{
		domain.NewDescription("x", 0).WithProsody(domain.Prosody{domain.ProsodyPause: 149.6}),
	}
	assert.Equal(t, `<speak>x<break time="150ms"/></speak>`, speech.RenderSSML(seq))
}

func TestRenderJSON(t *testing.T) {
	out, err := speech.RenderJSON(fractionSeq()[:2])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":"the fraction","node":0},{"text":"1","node":1}]`, out)
}

func TestFormats(t *testing.T) {
	for _, name := range []string{"", "text", "ssml", "json"} {
		f, err := speech.ParseFormat(name)
		require.NoError(t, err)
		r, err := speech.For(f)
		require.NoError(t, err)
		out, err := r.Render(fractionSeq())
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
	_, err := speech.ParseFormat("braille")
	assert.Error(t, err)
	_, err = speech.For("braille")
	assert.Error(t, err)
}
