package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/masomo-portal/core/guard"
)

func newPolicyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Work with guard policy files",
	}

	var show bool
	validateCmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a guard policy file against the built-in defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := guard.LoadPolicy(args[0], guard.DefaultPolicy(c.conf.Guard))
			if err != nil {
				return err
			}
			if show {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
	validateCmd.Flags().BoolVar(&show, "show", false, "Print the effective policy")

	cmd.AddCommand(validateCmd)
	return cmd
}
