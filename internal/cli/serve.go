package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/nodevfs/internal/api"
)

// serveCommand creates the serve command, which exposes the installer
// over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the install engine over HTTP",
		Long: `Start an HTTP server exposing install, progress, and version
resolution endpoints:

  POST /v1/install            {"dependencies": {"react": "^18"}}
  GET  /v1/progress           current snapshot (?stream=1 for server-sent events)
  GET  /v1/resolve/{name}     ?specifier=^18 (default latest)
  GET  /healthz`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := c.newEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			srv := api.New(eng.installer, eng.resolver, c.Logger)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}
