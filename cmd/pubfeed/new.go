package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/eringen/pubfeed/scaffold"
)

func newNewCmd() *cobra.Command {
	var siteURL string
	cmd := &cobra.Command{
		Use:   "new <name>",
		Short: "Creates a new pubfeed site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(cmd, args[0], siteURL)
		},
	}
	cmd.Flags().StringVar(&siteURL, "url", "https://example.com", "canonical site URL")
	return cmd
}

func runNew(cmd *cobra.Command, name, siteURL string) error {
	// Derive project directory name from the last path segment.
	dirName := name
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		dirName = name[idx+1:]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Creating new pubfeed site: %s\n\n", dirName)

	created, err := scaffold.Generate(dirName, scaffold.Data{
		ProjectName: dirName,
		SiteName:    scaffold.Title(dirName),
		SiteURL:     strings.TrimSuffix(siteURL, "/"),
	})
	for _, p := range created {
		fmt.Fprintf(out, "  created %s\n", p)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Done! Next steps:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  cd %s\n", dirName)
	fmt.Fprintln(out, "  pubfeed serve --watch")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Set site.url in pubfeed.yaml (or PUBFEED_SITE_URL) before publishing.")
	return nil
}
