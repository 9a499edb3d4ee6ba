package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/mathspeak/internal/compiler"
	"github.com/spf13/cobra"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the loaded constraints and rules",
		RunE:  runRules,
	}
	cmd.Flags().BoolP("verbose", "v", false, "List every rule with its action")
	return cmd
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	eng, release, err := buildEngine(cmd, cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer release()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		fmt.Fprintln(tw, "CONSTRAINT\tNAME\tKIND\tACTION")
		for _, r := range eng.Rules() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Constraint, r.Name, r.Query.Kind, compiler.Format(r.Action))
		}
		return tw.Flush()
	}

	fmt.Fprintln(tw, "CONSTRAINT\tRULES")
	for _, c := range eng.Constraints() {
		fmt.Fprintf(tw, "%s\t%d\n", c, eng.RuleCount(c))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "generation %d\n", eng.Generation())
	return nil
}
