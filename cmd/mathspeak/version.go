package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/mathspeak"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mathspeak",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mathspeak version %s\n", strings.TrimSpace(mathspeak.Version))
		},
	}
}
