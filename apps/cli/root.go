package main

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/core"
	logsvc "github.com/trezcool/masomo-portal/services/logger"
	"github.com/trezcool/masomo-portal/storage/restapi"
)

const tokenEnv = "MASOMO_TOKEN"

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNoToken = errors.New("not signed in: run `portalctl login` and export " + tokenEnv)
)

type cli struct {
	conf    *core.Config
	log     core.Logger
	apiURL  string
	token   string
	verbose bool
}

// client returns an API client for the signed-in user.
func (c *cli) client() (*restapi.Client, error) {
	if c.token == "" {
		return nil, errNoToken
	}
	return c.anonymousClient().WithToken(c.token), nil
}

func (c *cli) anonymousClient() *restapi.Client {
	return restapi.NewClient(c.apiURL, c.conf.APITimeout, restapi.WithLogger(c.log))
}

func newRootCmd(conf *core.Config) *cobra.Command {
	c := &cli{conf: conf, log: core.NopLogger{}}

	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Command line access to the Masomo school portal",
		Long: `portalctl talks to the same remote API as the portal.
Sign in once with "portalctl login", then export the printed token as ` + tokenEnv + `.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				rl := logsvc.NewRollbarLogger(log.New(cmd.ErrOrStderr(), "PORTALCTL : ", log.LstdFlags), conf)
				rl.Enable(false)
				c.log = rl
			}
		},
	}

	root.PersistentFlags().StringVar(&c.apiURL, "api", conf.APIBaseURL, "Remote API base URL")
	root.PersistentFlags().StringVar(&c.token, "token", os.Getenv(tokenEnv), "API token (defaults to $"+tokenEnv+")")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log API calls to stderr")

	root.AddCommand(
		newLoginCmd(c),
		newNotesCmd(c),
		newSubscriptionCmd(c),
		newPolicyCmd(c),
	)
	return root
}

// Execute runs portalctl with the process arguments. This is called by main.main().
func Execute() {
	if err := newRootCmd(core.NewConfig()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
