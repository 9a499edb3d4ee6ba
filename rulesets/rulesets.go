// Package rulesets embeds the built-in rule sets.
//
// default.yaml holds the universal (default, default) rules every request falls back to.
// verbose.yaml and terse.yaml add styles on top of it.
package rulesets

import (
	"context"
	"embed"
	"fmt"

	"github.com/aretw0/mathspeak/pkg/adapters/file"
	"github.com/aretw0/mathspeak/pkg/domain"
)

//go:embed *.yaml
var files embed.FS

// Loader returns a rule loader over the embedded files.
func Loader() *file.Loader {
	return file.NewFS(files)
}

// Rules parses the built-in rules in definition order.
func Rules() ([]domain.Rule, error) {
	rules, err := Loader().LoadRules(context.Background())
	if err != nil {
		return nil, fmt.Errorf("builtin rulesets: %w", err)
	}
	return rules, nil
}
