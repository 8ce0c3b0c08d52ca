package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-portal/core/guard"
)

func newSubscriptionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Inspect the school's subscription",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Run the dashboard access guard once and print its verdict",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			policies, err := guard.NewPolicyStore(guard.DefaultPolicy(c.conf.Guard), c.conf.Guard.PolicyFile, c.log)
			if err != nil {
				return err
			}

			g := guard.New("subscription",
				guard.All(
					guard.AuthChecker{Token: client.Token(), Source: client},
					guard.SubscriptionChecker{Source: client},
				),
				policies,
				guard.WithLogger(c.log),
			)
			v := g.Run(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "state: %s\n", v.State)
			if v.Condition != "" {
				fmt.Fprintf(out, "condition: %s\n", v.Condition)
			}
			if v.Notice != "" {
				fmt.Fprintf(out, "notice: %s\n", v.Notice)
			}
			if v.Redirect != "" {
				fmt.Fprintf(out, "redirect: %s\n", v.Redirect)
			}
			if v.Action != nil {
				fmt.Fprintf(out, "action: %s (%s)\n", v.Action.Label, v.Action.URL)
			}
			if !v.Authorized() {
				return errors.Errorf("access %s", v.State)
			}
			return nil
		},
	})
	return cmd
}
