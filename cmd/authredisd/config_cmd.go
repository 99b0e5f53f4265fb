package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/infigaming-com/go-authredis/config"
	"github.com/infigaming-com/go-authredis/redismanager"
)

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective properties and the resolved redis topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, props, err := loadConfig(configPath, namespace)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range config.Dump(props) {
				fmt.Fprintln(out, line)
			}
			if !cfg.IsEnabled() {
				fmt.Fprintln(out, "# disabled")
				return nil
			}
			settings, err := redismanager.ResolveSettings(cfg.RedisManager)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "# topology=%s addrs=%v database=%d\n", settings.Topology, settings.Addrs, settings.Database)
			return nil
		},
	}
}
