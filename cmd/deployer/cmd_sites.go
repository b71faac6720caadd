package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the Netlify sites the stored token can deploy to",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.Close()

		if !rt.Deployer.IsAuthorized() {
			fmt.Fprintln(cmd.ErrOrStderr(), "not authorized; run `deployer authorize` first")
		}
		options, err := rt.Deployer.SiteOptions(cmd.Context())
		if err != nil {
			return err
		}
		for _, option := range options {
			if option.Value == "" {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", option.Value, option.Label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}
