package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

func newLoginCmd(c *cli) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print an API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.ErrOrStderr(), "Enter password:")
			pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			creds := user.Credentials{Email: email, Password: string(pwd)}
			validate, translator := core.NewValidator()
			if err := creds.Validate(validate); err != nil {
				var verrs validator.ValidationErrors
				if errors.As(err, &verrs) {
					return fieldErrors(core.TranslateValidationErrors(verrs, translator))
				}
				return err
			}

			res, err := c.anonymousClient().Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			if res.User.IsFirstLogin {
				fmt.Fprintln(cmd.ErrOrStderr(), "First login: change your password in the portal before continuing.")
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// fieldErrors renders {field: message} as one error, fields sorted.
func fieldErrors(flds map[string]string) error {
	msgs := make([]string, 0, len(flds))
	for fld, msg := range flds {
		msgs = append(msgs, fld+": "+msg)
	}
	sort.Strings(msgs)
	return errors.New("invalid credentials: " + strings.Join(msgs, "; "))
}
