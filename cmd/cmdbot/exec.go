package main

import (
	"strings"

	"github.com/spf13/cobra"

	"pkt.systems/cmdbot/internal/appconfig"
)

func newExecCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "exec <keyword> [payload...]",
		Short: "Dispatch a single line and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			b, err := newBot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if cfg.Status.File != "" {
				watcher, err := b.statusWatcher()
				if err != nil {
					return err
				}
				if err := watcher.Apply(cmd.Context()); err != nil {
					return err
				}
			}
			return b.writeLines(cmd.OutOrStdout(), b.handle(cmd.Context(), strings.Join(args, " "), callerArgs()))
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}
