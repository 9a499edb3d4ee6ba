package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/aretw0/mathspeak/pkg/domain"
	"github.com/aretw0/mathspeak/pkg/speech"
	"github.com/spf13/cobra"
)

func newSpeakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak [tree.json]",
		Short: "Speak a semantic tree",
		Long: `Reads a semantic tree as nested JSON from the given file, or stdin when the
argument is omitted or "-", and prints its spoken form.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSpeak,
	}
	cmd.Flags().StringP("format", "f", "text", "Output format: text, ssml or json")
	cmd.Flags().Int("node", -1, "Node id to speak (default: root)")
	cmd.Flags().Bool("explain", false, "Print which rule spoke each node")
	return cmd
}

func runSpeak(cmd *cobra.Command, args []string) error {
	cfg, err := settings(cmd)
	if err != nil {
		return err
	}
	formatName, _ := cmd.Flags().GetString("format")
	format, err := speech.ParseFormat(formatName)
	if err != nil {
		return err
	}

	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	tree, err := domain.DecodeTree(data)
	if err != nil {
		return err
	}
	id := tree.Root()
	if n, _ := cmd.Flags().GetInt("node"); n >= 0 {
		id = domain.NodeID(n)
	}

	eng, release, err := buildEngine(cmd, cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer release()

	seq, trace, err := eng.Explain(cmd.Context(), tree, id, cfg.Constraint())
	if err != nil {
		return err
	}
	renderer, err := speech.For(format)
	if err != nil {
		return err
	}
	out, err := renderer.Render(seq)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if explain, _ := cmd.Flags().GetBool("explain"); explain {
		tw := tabwriter.NewWriter(cmd.ErrOrStderr(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NODE\tKIND\tDEPTH\tRULE\tLEVEL\tCACHED")
		for _, t := range trace {
			rule := t.Rule
			if rule == "" {
				rule = "(default action)"
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%t\n", t.Node, t.Kind, t.Depth, rule, t.Level, t.Cached)
		}
		return tw.Flush()
	}
	return nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read tree: %w", err)
	}
	return data, nil
}
