package cli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/wayne/internal/buildinfo"
	"github.com/dmitrijs2005/wayne/internal/client/client"
	"github.com/dmitrijs2005/wayne/internal/client/config"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the wayne command tree. Flags override the config
// file and environment.
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		serverURL  string
		timeout    time.Duration
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "wayne",
		Short:         "Command-line client for the Wayne control plane",
		Long:          "Starts an interactive session against the Wayne API. Type 'help' inside the session for commands.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				c.ServerURL = serverURL
			}
			if cmd.Flags().Changed("timeout") {
				c.RequestTimeout = timeout
			}
			if err := c.Validate(); err != nil {
				return err
			}
			cfg = c
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return NewApp(cfg, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to JSON config file")
	root.PersistentFlags().StringVarP(&serverURL, "addr", "a", "", "server base URL, e.g. http://127.0.0.1:8080")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "per-request timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "health",
			Short: "Check that the server and its database are reachable",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := client.NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout).Health(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Args:  cobra.NoArgs,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return nil
			},
			Run: func(cmd *cobra.Command, args []string) {
				buildinfo.PrintBuildData(cmd.OutOrStdout())
			},
		},
	)

	return root
}
