package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) newServeCmd() *cobra.Command {
	var addr string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the feed, sitemap and optimized images",
		Long: `The serve command starts an HTTP server that renders /rss.xml on demand,
caches it, and serves optimized images and the public directory. With --watch
the content tree is watched and the feed is rebuilt on changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.v.Set("server.addr", addr)
			}
			if cmd.Flags().Changed("watch") {
				c.v.Set("server.watch", watch)
			}
			app := c.newApp()
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- app.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			c.logger.Infof("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.Echo.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return <-errc
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default :3000)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rebuild when the content tree changes")
	return cmd
}
