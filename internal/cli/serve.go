package cli

import (
	"github.com/spf13/cobra"

	"github.com/glow-labs/glow/internal/daemon"
)

func newServeCmd(src configSource) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Glow API server",
		Long:  `Start the HTTP API, the health checker and the nightly streak-saver job.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := src.load()
			if err != nil {
				return err
			}

			// Override config from flags
			if host != "" {
				cfg.API.Host = host
			}
			if port > 0 {
				cfg.API.Port = port
			}

			d, err := daemon.NewWithConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()
			return d.Serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	return cmd
}
