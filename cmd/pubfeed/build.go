package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eringen/pubfeed"
)

func (c *cli) newBuildCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generates the feed once and writes it to a file or stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := c.newApp()
			defer app.Close()

			feed, err := app.Build(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := pubfeed.WriteRSS(w, feed); err != nil {
				return err
			}
			c.logger.Infof("wrote %d items", len(feed.Items))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the feed to this file instead of stdout")
	return cmd
}
