package speech

import (
	"fmt"

	"github.com/aretw0/mathspeak/pkg/domain"
)

// Format names an output form.
type Format string

const (
	FormatText Format = "text"
	FormatSSML Format = "ssml"
	FormatJSON Format = "json"
)

// Renderer turns descriptions into a string.
type Renderer interface {
	Render(seq []domain.Description) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(seq []domain.Description) (string, error)

func (f RendererFunc) Render(seq []domain.Description) (string, error) {
	return f(seq)
}

// ParseFormat validates a format name. The empty string selects text.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatText:
		return FormatText, nil
	case FormatSSML, FormatJSON:
		return Format(name), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, ssml or json)", name)
}

// For returns the renderer for format.
func For(format Format) (Renderer, error) {
	switch format {
	case "", FormatText:
		return RendererFunc(func(seq []domain.Description) (string, error) { return Render(seq), nil }), nil
	case FormatSSML:
		return RendererFunc(func(seq []domain.Description) (string, error) { return RenderSSML(seq), nil }), nil
	case FormatJSON:
		return RendererFunc(RenderJSON), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}
