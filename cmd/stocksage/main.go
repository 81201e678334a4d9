// Command stocksage is the terminal client: chat about a ticker with a
// running stocksage server and render assistant markup.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stocksage/internal/config"
)

var version = "dev"

type options struct {
	configPath string
	endpoint   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "stocksage",
		Short:         "Chat with a stock analysis assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "configs/app.yaml", "path to config file")
	root.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "", "stocksage server base URL (default client.endpoint or STOCKSAGE_SERVER_URL)")

	root.AddCommand(
		newChatCmd(opts),
		newRenderCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "stocksage", version)
			},
		},
	)
	return root
}

// resolveEndpoint prefers the flag, then config and environment, then the
// local server on the configured port.
func (o *options) resolveEndpoint() (string, *config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return "", nil, err
	}
	if ep := strings.TrimSpace(o.endpoint); ep != "" {
		return ep, cfg, nil
	}
	if cfg.Client.Endpoint != "" {
		return cfg.Client.Endpoint, cfg, nil
	}
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port), cfg, nil
}
