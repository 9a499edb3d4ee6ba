package main

import (
	"fmt"

	"github.com/aretw0/mathspeak/pkg/adapters/file"
	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/rulebase"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir...]",
		Short: "Check rule files for errors",
		Long: `Parses every YAML rule file under the given directories (default: the configured
rule directories) and reports every invalid rule at once.`,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	dirs := args
	if len(dirs) == 0 {
		dirs = cfg.Rules
	}
	if len(dirs) == 0 {
		return fmt.Errorf("no rule directories given")
	}

	var rules []domain.Rule
	var problems []error
	for _, dir := range dirs {
		loader, err := file.New(dir)
		if err != nil {
			return err
		}
		r, err := loader.LoadRules(cmd.Context())
		if err != nil {
			if nested := domain.RuleErrors(err); nested != nil {
				problems = append(problems, nested...)
				continue
			}
			return err
		}
		rules = append(rules, r...)
	}
	if len(problems) == 0 {
		if err := rulebase.Validate(rules); err != nil {
			problems = append(problems, domain.RuleErrors(err)...)
		}
	}
	if len(problems) > 0 {
		return &domain.InvalidRuleBaseError{Errors: problems}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d rules are valid\n", len(rules))
	return nil
}
