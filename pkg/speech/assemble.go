package speech

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// Fragment is a run of adjacent descriptions sharing a node and prosody.
type Fragment struct {
	Text    string         `json:"text"`
	Node    *domain.NodeID `json:"node,omitempty"`
	Prosody domain.Prosody `json:"prosody,omitempty"`
}

// Merge joins adjacent descriptions that reference the same node and carry the same
// prosody, ignoring pauses. A merged fragment keeps the pause of its last description.
// Content order is preserved and empty texts are dropped.
func Merge(seq []domain.Description) []Fragment {
	out := make([]Fragment, 0, len(seq))
	for _, d := range seq {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			continue
		}
		if n := len(out); n > 0 {
			last := &out[n-1]
			prev := domain.Description{Node: last.Node}
			if prev.SameNode(d) && last.Prosody.Equal(d.Prosody, true) && last.Prosody[domain.ProsodyPause] == 0 {
				last.Text += " " + text
				if p := d.Prosody[domain.ProsodyPause]; p > 0 {
					last.Prosody = last.Prosody.Merge(domain.Prosody{domain.ProsodyPause: p})
				}
				continue
			}
		}
		f := Fragment{Text: text, Prosody: d.Prosody.Clone()}
		if d.Node != nil {
			n := *d.Node
			f.Node = &n
		}
		out = append(out, f)
	}
	return out
}

// Render concatenates the description texts with single spaces.
func Render(seq []domain.Description) string {
	parts := make([]string, 0, len(seq))
	for _, f := range Merge(seq) {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, " ")
}

// RenderSSML renders the descriptions as an SSML document. Pitch, rate and volume deltas
// become relative percentages on a prosody element; pauses become breaks after the text.
func RenderSSML(seq []domain.Description) string {
	var b strings.Builder
	b.WriteString("<speak>")
	for i, f := range Merge(seq) {
		if i > 0 {
			b.WriteString(" ")
		}
		attrs := prosodyAttrs(f.Prosody)
		if attrs != "" {
			b.WriteString("<prosody" + attrs + ">")
		}
		b.WriteString(escape(f.Text))
		if attrs != "" {
			b.WriteString("</prosody>")
		}
		if p := f.Prosody[domain.ProsodyPause]; p > 0 {
			fmt.Fprintf(&b, `<break time="%dms"/>`, int(math.Round(p)))
		}
	}
	b.WriteString("</speak>")
	return b.String()
}

func prosodyAttrs(p domain.Prosody) string {
	var b strings.Builder
	for _, k := range p.Keys() {
		if k == domain.ProsodyPause || p[k] == 0 {
			continue
		}
		pct := math.Round(p[k]*10000) / 100
		sign := "+"
		if pct < 0 {
			sign = ""
		}
		fmt.Fprintf(&b, ` %s="%s%s%%"`, k, sign, strconv.FormatFloat(pct, 'f', -1, 64))
	}
	return b.String()
}

var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func escape(s string) string {
	return escaper.Replace(s)
}

// RenderJSON renders the merged fragments as a JSON array.
func RenderJSON(seq []domain.Description) (string, error) {
	data, err := json.Marshal(Merge(seq))
	if err != nil {
		return "", fmt.Errorf("failed to marshal fragments: %w", err)
	}
	return string(data), nil
}
